package bconfig

// Header defines the common parts of *Config implementations, to be embedded inline
//
// Type must be the first property in YAML documents
type Header struct {
	Type string `yaml:"type"`
}

// GetType returns the type name
func (header *Header) GetType() string {
	return header.Type
}
