package defs

import (
	"time"
)

var (
	// DefaultActiveFrames defines how many incomplete frames are kept in flight when not configured
	//
	// The window needs at least 2 frames, otherwise any heap of the next dump would evict the current one
	DefaultActiveFrames = 2

	// BootstrapLiveHeaps is the max number of incomplete heaps in the small subscription used to read metadata
	BootstrapLiveHeaps = 4

	// SourceRingHeaps is the number of completed heaps buffered between a source's network goroutine and its reader
	//
	// It applies to both bootstrap and full-rate subscriptions
	SourceRingHeaps = 4

	// SourceLiveHeapsMargin is added to the number of X-engines per stream to get the max number of incomplete heaps
	//
	// CBF sends 2 metadata heaps in a row. X-engines are assumed not to interleave packets of different heaps.
	SourceLiveHeapsMargin = 2

	// SourceHeapBytesMargin is the extra space reserved on top of the data item for other items in a data heap
	SourceHeapBytesMargin = 512

	// SourcePoolFramesMargin is the number of heaps per X-engine kept in the buffer pool on top of active frames
	//
	// It covers the heap just popped from the ring, the completion channel and frames being processed downstream
	SourcePoolFramesMargin = 5

	// SourcePacketSize is the max size of one UDP datagram, in bytes (jumbo frames)
	SourcePacketSize = 9200

	// SourceRecvBufferSize is the default socket receive buffer of full-rate subscriptions, in bytes
	SourceRecvBufferSize = 64 * 1024 * 1024

	// SourceMinRecvBufferSize is the socket receive buffer of bootstrap subscriptions, and the lowest accepted for
	// full-rate ones
	SourceMinRecvBufferSize = 256 * 1024

	// MaxHeapLength is the largest heap a source reassembles from packets; packets of longer heaps are dropped
	MaxHeapLength = 64 * 1024 * 1024

	// SourceReadTimeout defines how often the network goroutine of a source wakes up to check for stop requests
	SourceReadTimeout = 500 * time.Millisecond

	// SourceStopTimeout is how long a source waits for its reader to take pending heaps after stop
	//
	// Pending heaps are abandoned once the timeout is reached
	SourceStopTimeout = 10 * time.Second

	// MetricsUpdateInterval defines how often the consumer loop logs receive statistics
	MetricsUpdateInterval = 10 * time.Second
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with very short timeouts
func EnableTestMode() {
	SourceReadTimeout = 50 * time.Millisecond
	SourceStopTimeout = 1 * time.Second
	MetricsUpdateInterval = 1 * time.Second
}
