// Package attrstore provides state stores holding CBF attributes and sensors, shared between the receiver and the
// outside world
package attrstore

import (
	"fmt"

	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/util"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryStore is a concurrent in-process state store
//
// Published attributes are immutable: the first value wins and later ones are ignored. Sensors always take the latest
// value.
type MemoryStore struct {
	logger logger.Logger
	prefix string
	values *xsync.Map
}

// NewMemoryStore creates an empty MemoryStore publishing metadata under "<prefix>_<name>"
func NewMemoryStore(parentLogger logger.Logger, prefix string) *MemoryStore {
	return &MemoryStore{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "MemoryStore",
			defs.LabelName:      prefix,
		}),
		prefix: prefix,
		values: xsync.NewMap(),
	}
}

// Get returns the value of the key
func (store *MemoryStore) Get(key string) (interface{}, bool) {
	return store.values.Load(key)
}

// Set sets or overwrites the value of the key
func (store *MemoryStore) Set(key string, value interface{}) {
	store.values.Store(key, value)
}

// PublishMetadata stores a metadata item from the heap stream
func (store *MemoryStore) PublishMetadata(name string, value interface{}, isSensor bool) {
	key := store.Key(name)
	if isSensor {
		store.values.Store(key, value)
		store.logger.Debugf("update sensor %s", key)
		return
	}
	if existing, loaded := store.values.LoadOrStore(key, value); loaded {
		store.logger.Debugf("attribute %s is already set to %v", key, existing)
	} else {
		store.logger.Infof("set attribute %s", key)
	}
}

// Key returns the key of metadata in store
func (store *MemoryStore) Key(name string) string {
	if store.prefix == "" {
		return name
	}
	return store.prefix + "_" + name
}

// Load puts all the values into store, overwriting existing ones
func (store *MemoryStore) Load(values map[string]interface{}) {
	for k, v := range values {
		store.values.Store(k, v)
	}
}

// LoadYamlFile loads a YAML mapping of keys to values into store
func (store *MemoryStore) LoadYamlFile(path string) error {
	values := make(map[string]interface{})
	if err := util.UnmarshalYamlFile(path, &values); err != nil {
		return fmt.Errorf("failed to load state from '%s': %w", path, err)
	}
	store.Load(values)
	store.logger.Infof("loaded %d values from %s", len(values), path)
	return nil
}

// Snapshot returns a copy of all values
func (store *MemoryStore) Snapshot() map[string]interface{} {
	values := make(map[string]interface{})
	store.values.Range(func(key string, value interface{}) bool {
		values[key] = value
		return true
	})
	return values
}

// Keys returns all keys in sorted order
func (store *MemoryStore) Keys() []string {
	keys := maps.Keys(store.Snapshot())
	slices.Sort(keys)
	return keys
}
