package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"

	LabelStream   = "stream"
	LabelEndpoint = "endpoint"
	LabelLocal    = "local"
)

// Names of the items carried by CBF heaps which are not metadata
const (
	ItemTimestamp = "timestamp"
	ItemFrequency = "frequency"
	ItemXengRaw   = "xeng_raw"
)

// TimestampWrapPeriod is the modulus of the CBF hardware timestamp counter (48 bits)
const TimestampWrapPeriod int64 = 1 << 48
