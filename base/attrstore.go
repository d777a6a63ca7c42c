package base

// AttrStore is a read-only view of the external state store (telescope state)
//
// Keys are in the form of "<cbf name>_<attribute name>"
type AttrStore interface {
	Get(key string) (interface{}, bool)
}

// MetadataPublisher receives metadata items harvested from heap streams, to propagate them to the state store
//
// It's called from stream readers concurrently. Sensors are time-varying values and always updated, while other
// metadata are attributes which are written once.
type MetadataPublisher interface {
	PublishMetadata(name string, value interface{}, isSensor bool)
}

// SensorClassifier decides whether a metadata item is a sensor
type SensorClassifier interface {
	IsSensor(name string) bool
}

// StateStore is an external state store which metadata can be read from and published to
type StateStore interface {
	AttrStore
	MetadataPublisher
}
