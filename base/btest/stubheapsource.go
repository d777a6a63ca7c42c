package btest

import (
	"fmt"
	"sync"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/util"
)

// StubHeapSourceFactory is an in-memory HeapSourceFactory for testing, with one StubHeapStream per endpoint
type StubHeapSourceFactory struct {
	logger  logger.Logger
	mutex   sync.Mutex
	streams map[string]*StubHeapStream
	openErr error
}

// StubHeapStream is the sending side of one endpoint, shared by all subscriptions opened on it
type StubHeapStream struct {
	endpoint    string
	heaps       chan *base.Heap
	ended       *channels.SignalAwaitable
	endOnce     util.RunOnce
	mutex       sync.Mutex
	sizings     []base.SourceSizing
	numOpen     int
	nextHeapCnt uint64
}

type stubHeapSource struct {
	logger    logger.Logger
	stream    *StubHeapStream
	closed    *channels.SignalAwaitable
	closeOnce util.RunOnce
}

// NewStubHeapSourceFactory creates a StubHeapSourceFactory
func NewStubHeapSourceFactory(parentLogger logger.Logger) *StubHeapSourceFactory {
	return &StubHeapSourceFactory{
		logger:  parentLogger.WithField(defs.LabelComponent, "StubHeapSourceFactory"),
		streams: make(map[string]*StubHeapStream),
	}
}

// FailOpen makes all further OpenSource calls fail with the given error
func (factory *StubHeapSourceFactory) FailOpen(err error) {
	factory.mutex.Lock()
	defer factory.mutex.Unlock()
	factory.openErr = err
}

// Stream returns the stream of the given endpoint address ("host:port"), creating it if needed
func (factory *StubHeapSourceFactory) Stream(address string) *StubHeapStream {
	factory.mutex.Lock()
	defer factory.mutex.Unlock()
	if stream, ok := factory.streams[address]; ok {
		return stream
	}
	stream := &StubHeapStream{
		endpoint: address,
		heaps:    make(chan *base.Heap),
		ended:    channels.NewSignalAwaitable(),
	}
	stream.endOnce = util.NewRunOnce(stream.ended.Signal)
	factory.streams[address] = stream
	return stream
}

// OpenSource opens a new subscription on the stream of given endpoint
func (factory *StubHeapSourceFactory) OpenSource(parentLogger logger.Logger, endpoint base.Endpoint, sizing base.SourceSizing) (base.HeapSource, error) {
	factory.mutex.Lock()
	openErr := factory.openErr
	factory.mutex.Unlock()
	if openErr != nil {
		return nil, fmt.Errorf("failed to open %s: %w", endpoint, openErr)
	}

	stream := factory.Stream(endpoint.String())
	stream.mutex.Lock()
	stream.sizings = append(stream.sizings, sizing)
	stream.numOpen++
	stream.mutex.Unlock()

	src := &stubHeapSource{
		logger: parentLogger.WithField(defs.LabelComponent, "StubHeapSource"),
		stream: stream,
		closed: channels.NewSignalAwaitable(),
	}
	src.closeOnce = util.NewRunOnce(func() {
		src.closed.Signal()
		stream.mutex.Lock()
		stream.numOpen--
		stream.mutex.Unlock()
	})
	return src, nil
}

// Push sends a heap to whichever subscription is reading the stream
//
// Returns false if nobody takes the heap within the timeout
func (stream *StubHeapStream) Push(heap *base.Heap, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case stream.heaps <- heap:
		return true
	case <-timer.C:
		return false
	}
}

// PushItems sends a heap made of the given items, with an automatically increasing heap counter
func (stream *StubHeapStream) PushItems(timeout time.Duration, items ...*base.Item) bool {
	heap := &base.Heap{
		Cnt:   stream.nextHeapCnt,
		Items: make(map[string]*base.Item, len(items)),
	}
	stream.nextHeapCnt++
	for _, item := range items {
		heap.Items[item.Name] = item
		heap.RawLength += item.NumBytes()
	}
	return stream.Push(heap, timeout)
}

// End terminates the stream from the sender side: all subscriptions stop and further pushes time out
func (stream *StubHeapStream) End() {
	stream.endOnce()
}

// Sizings returns the sizing of each subscription opened so far
func (stream *StubHeapStream) Sizings() []base.SourceSizing {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	return append([]base.SourceSizing(nil), stream.sizings...)
}

// NumOpen returns the number of subscriptions not yet closed
func (stream *StubHeapStream) NumOpen() int {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	return stream.numOpen
}

func (src *stubHeapSource) NextHeap() (*base.Heap, bool) {
	select {
	case heap := <-src.stream.heaps:
		return heap, true
	case <-src.closed.Channel():
		src.logger.Debug("closed")
		return nil, false
	case <-src.stream.ended.Channel():
		src.logger.Debug("ended")
		return nil, false
	}
}

func (src *stubHeapSource) Close() {
	src.closeOnce()
}
