package bconfig

// BaseConfig contains basic properties required for all Config types
type BaseConfig interface {
	// GetType returns the type name
	GetType() string

	// VerifyConfig checks values which can't be checked by YAML decoding
	VerifyConfig() error
}
