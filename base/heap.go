package base

import (
	"github.com/relex/gotils/logger"
)

// Item is one named value carried by a heap
//
// Metadata items carry Value (scalar or nested slices). Array data items such as xeng_raw carry raw bytes in Data,
// with the logical dimensions in Shape and element type in DType.
type Item struct {
	Name  string
	Shape []int
	DType string
	Value interface{}
	Data  []byte
}

// NumBytes returns the size of raw data in the item
func (item *Item) NumBytes() int {
	return len(item.Data)
}

// Heap is one self-describing unit decoded from a heap stream
type Heap struct {
	Cnt       uint64           // heap counter assigned by sender
	Items     map[string]*Item // items updated by this heap
	RawLength int              // encoded length of the heap
}

// Get returns the item of given name or nil
func (heap *Heap) Get(name string) *Item {
	return heap.Items[name]
}

// Has checks whether the heap contains the given item
func (heap *Heap) Has(name string) bool {
	_, ok := heap.Items[name]
	return ok
}

// HeapSource is a subscription to one heap stream
//
// NextHeap blocks until the next heap is decoded, or returns false once the stream has stopped, either closed locally
// or terminated by sender. Malformed packets and heaps are handled inside and never returned.
type HeapSource interface {
	NextHeap() (*Heap, bool)
	Close()
}

// SourceSizing defines the memory budget of a HeapSource
type SourceSizing struct {
	LiveHeaps int // max number of incomplete heaps being assembled at the same time
	RingHeaps int // max number of complete heaps waiting to be taken by NextHeap
	HeapBytes int // size of pooled heap buffers, 0 to disable pooling
	PoolHeaps int // max number of free heap buffers kept for reuse
}

// HeapSourceFactory opens subscriptions to heap streams
type HeapSourceFactory interface {
	OpenSource(parentLogger logger.Logger, endpoint Endpoint, sizing SourceSizing) (HeapSource, error)
}
