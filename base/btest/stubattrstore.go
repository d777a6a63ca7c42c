package btest

import (
	"sync"
)

// PublishedMetadata is one call to MetadataPublisher
type PublishedMetadata struct {
	Name     string
	Value    interface{}
	IsSensor bool
}

// StubAttrStore is a map-based AttrStore and MetadataPublisher for testing
type StubAttrStore struct {
	mutex     sync.Mutex
	values    map[string]interface{}
	published []PublishedMetadata
}

// NewStubAttrStore creates a StubAttrStore with initial values
func NewStubAttrStore(values map[string]interface{}) *StubAttrStore {
	store := &StubAttrStore{values: make(map[string]interface{}, len(values))}
	for k, v := range values {
		store.values[k] = v
	}
	return store
}

// Get returns the value of key
func (store *StubAttrStore) Get(key string) (interface{}, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	value, ok := store.values[key]
	return value, ok
}

// Set sets the value of key
func (store *StubAttrStore) Set(key string, value interface{}) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[key] = value
}

// PublishMetadata records the call
func (store *StubAttrStore) PublishMetadata(name string, value interface{}, isSensor bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.published = append(store.published, PublishedMetadata{Name: name, Value: value, IsSensor: isSensor})
}

// Published returns all recorded PublishMetadata calls
func (store *StubAttrStore) Published() []PublishedMetadata {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]PublishedMetadata(nil), store.published...)
}
