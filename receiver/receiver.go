// Package receiver combines heaps from multiple CBF substreams into frames of complete dumps
package receiver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/samber/lo"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/util"
)

// State is the lifecycle state of a Receiver
type State int32

// States of Receiver in order. A Receiver never goes back to an earlier state.
const (
	StateBootstrapping State = iota // waiting for metadata and the first data heap
	StateStreaming                  // the window has been seeded by a data heap
	StateDraining                   // all streams ended; frames left in window are being flushed
	StateStopped                    // end of stream has been returned to consumer
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "BOOTSTRAPPING"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Params contains everything needed to create a Receiver
type Params struct {
	CBFName                  string                 // prefix of attribute keys in AttrStore
	Endpoints                []base.Endpoint        // all CBF substreams, covering CBFChannels in order
	ChannelRange             base.ChannelRange      // channels to receive, aligned to substreams
	CBFChannels              int                    // total number of channels produced by CBF
	ActiveFrames             int                    // number of incomplete frames kept in flight, 0 for default
	DeliverIncompleteOnDrain bool                   // deliver instead of discarding incomplete frames left at end
	SourceFactory            base.HeapSourceFactory // required
	AttrStore                base.AttrStore         // optional
	Publisher                base.MetadataPublisher // optional
	Sensors                  base.SensorClassifier  // optional, nothing is a sensor if nil
}

// Receiver reads heaps from multiple substreams in parallel and assembles them into frames
//
// Frames are delivered via Get in the order of timestamps. Get and Join must be called from a single consumer
// goroutine, while Stop may be called from anywhere.
type Receiver struct {
	logger       logger.Logger
	cbfName      string
	channelRange base.ChannelRange
	activeFrames int
	drainAll     bool
	attrStore    base.AttrStore
	publisher    base.MetadataPublisher
	sensors      base.SensorClassifier
	metrics      *receiverMetrics
	attrs        attributeSet
	state        int32

	stopRequest *channels.SignalAwaitable
	stopOnce    util.RunOnce
	readers     []*streamReader
	completed   chan completion

	windowMutex  sync.Mutex
	layout       *streamLayout // set by the first reader finishing bootstrap
	window       *frameWindow  // seeded by the first accepted data heap
	bootstrapped int

	// consumer side
	running  int
	leftover []*base.Frame
}

// completion is either a frame or the index of an ended stream
type completion struct {
	frame       *base.Frame
	streamIndex int
}

// NewReceiver verifies parameters, subscribes to all needed substreams and launches a reader for each
func NewReceiver(parentLogger logger.Logger, params Params, metricCreator promreg.MetricCreator) (*Receiver, error) {
	useEndpoints, err := selectEndpoints(params)
	if err != nil {
		return nil, err
	}
	activeFrames := params.ActiveFrames
	if activeFrames == 0 {
		activeFrames = defs.DefaultActiveFrames
	}
	if activeFrames < 2 {
		return nil, fmt.Errorf("activeFrames must be at least 2, got %d", activeFrames)
	}
	if params.SourceFactory == nil {
		return nil, fmt.Errorf("missing heap source factory")
	}

	recv := &Receiver{
		logger:       parentLogger.WithField(defs.LabelComponent, "Receiver"),
		cbfName:      params.CBFName,
		channelRange: params.ChannelRange,
		activeFrames: activeFrames,
		drainAll:     params.DeliverIncompleteOnDrain,
		attrStore:    params.AttrStore,
		publisher:    params.Publisher,
		sensors:      params.Sensors,
		metrics:      newReceiverMetrics(metricCreator),
		state:        int32(StateBootstrapping),
		stopRequest:  channels.NewSignalAwaitable(),
		completed:    make(chan completion, 1),
	}
	recv.stopOnce = util.NewRunOnce(recv.stopRequest.Signal)
	if recv.attrStore == nil {
		recv.logger.Warn("no state store available; critical metadata must be available in heap streams")
	}

	sizing := base.SourceSizing{
		LiveHeaps: defs.BootstrapLiveHeaps,
		RingHeaps: defs.SourceRingHeaps,
	}
	readers := make([]*streamReader, 0, len(useEndpoints))
	for i, endpoint := range useEndpoints {
		endpoint.Index = i
		rlogger := recv.logger.WithFields(logger.Fields{
			defs.LabelStream:   i,
			defs.LabelEndpoint: endpoint.String(),
		})
		src, serr := params.SourceFactory.OpenSource(rlogger, endpoint, sizing)
		if serr != nil {
			for _, r := range readers {
				r.source.Close()
			}
			return nil, fmt.Errorf("failed to subscribe to %s: %w", endpoint, serr)
		}
		readers = append(readers, newStreamReader(rlogger, recv, endpoint, params.SourceFactory, src))
	}
	recv.readers = readers
	recv.running = len(readers)

	recv.logger.Infof("receive CBF heap streams on %s, channels %s of %d", lo.Map(useEndpoints, func(ep base.Endpoint, _ int) string {
		return ep.String()
	}), recv.channelRange, params.CBFChannels)
	for _, r := range readers {
		r.Launch()
	}
	return recv, nil
}

// selectEndpoints returns the endpoints covering the channel range
func selectEndpoints(params Params) ([]base.Endpoint, error) {
	if len(params.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints")
	}
	if params.CBFChannels <= 0 {
		return nil, fmt.Errorf("invalid number of CBF channels: %d", params.CBFChannels)
	}
	if params.CBFChannels%len(params.Endpoints) != 0 {
		return nil, fmt.Errorf("CBF channels (%d) not divisible by the number of endpoints (%d)", params.CBFChannels, len(params.Endpoints))
	}
	if params.ChannelRange.Len() <= 0 || !params.ChannelRange.IsSubsetOf(base.ChannelRange{Start: 0, Stop: params.CBFChannels}) {
		return nil, fmt.Errorf("channel range %s is outside CBF channels [0, %d)", params.ChannelRange, params.CBFChannels)
	}
	streamChannels := params.CBFChannels / len(params.Endpoints)
	if !params.ChannelRange.IsAligned(streamChannels) {
		return nil, fmt.Errorf("channel range %s is not aligned to the stream boundaries of %d channels", params.ChannelRange, streamChannels)
	}
	return append([]base.Endpoint(nil), params.Endpoints[params.ChannelRange.Start/streamChannels:params.ChannelRange.Stop/streamChannels]...), nil
}

// Get returns the next frame, or false if all streams have ended and the remaining frames have been flushed
func (recv *Receiver) Get() (*base.Frame, bool) {
	for recv.running > 0 {
		c := <-recv.completed
		if c.frame != nil {
			recv.metrics.OnFrameDelivered(c.frame.Ready())
			return c.frame, true
		}
		recv.onStreamEnded(c.streamIndex)
	}
	return recv.drainNext()
}

// Stop requests all subscriptions to close. Frames still being assembled can be collected by Get afterwards.
//
// Stop doesn't block and may be called any number of times in any state.
func (recv *Receiver) Stop() {
	if recv.stopOnce() {
		recv.logger.Info("stop requested")
	}
}

// Join waits for all readers to end. Frames delivered meanwhile are discarded.
//
// It must not be called concurrently with Get.
func (recv *Receiver) Join() {
	for recv.running > 0 {
		c := <-recv.completed
		if c.frame != nil {
			recv.logger.Debugf("discard %s on join", c.frame)
			recv.metrics.OnFrameDiscarded(discardUnconsumed)
			continue
		}
		recv.onStreamEnded(c.streamIndex)
	}
}

// State returns the current lifecycle state
func (recv *Receiver) State() State {
	return State(atomic.LoadInt32(&recv.state))
}

// Attributes returns a snapshot of the critical CBF attributes collected so far
func (recv *Receiver) Attributes() CriticalAttributes {
	return recv.attrs.Snapshot()
}

// Stopped returns an Awaitable signaled when all readers have ended
func (recv *Receiver) Stopped() channels.Awaitable {
	return channels.AllAwaitables(lo.Map(recv.readers, func(r *streamReader, _ int) channels.Awaitable {
		return r.Stopped()
	})...)
}

func (recv *Receiver) onStreamEnded(streamIndex int) {
	recv.readers[streamIndex].Stopped().WaitForever()
	recv.running--
	recv.logger.Infof("stream %d ended, %d left", streamIndex, recv.running)
	if recv.running == 0 {
		recv.advanceState(StateDraining)
	}
}

// drainNext returns the next ready frame left in window after all readers have ended
func (recv *Receiver) drainNext() (*base.Frame, bool) {
	if recv.State() == StateStopped {
		return nil, false
	}
	recv.windowMutex.Lock()
	if recv.window != nil {
		recv.leftover = recv.window.Drain()
		recv.window = nil
	}
	recv.windowMutex.Unlock()

	for len(recv.leftover) > 0 {
		frame := recv.leftover[0]
		recv.leftover[0] = nil
		recv.leftover = recv.leftover[1:]
		switch {
		case frame.Ready():
			recv.logger.Debugf("flush frame with timestamp %d", frame.Timestamp())
			recv.metrics.OnFrameDelivered(true)
			return frame, true
		case frame.Empty():
			recv.logger.Debugf("discard empty frame with timestamp %d", frame.Timestamp())
			recv.metrics.OnFrameDiscarded(discardEmpty)
		case recv.drainAll:
			recv.logger.Warnf("frame with timestamp %d is %d/%d complete", frame.Timestamp(), frame.NumFilled(), frame.NumSlots())
			recv.metrics.OnFrameDelivered(false)
			return frame, true
		default:
			recv.logger.Warnf("discard incomplete frame with timestamp %d (%d/%d)", frame.Timestamp(), frame.NumFilled(), frame.NumSlots())
			recv.metrics.OnFrameDiscarded(discardIncomplete)
		}
	}
	recv.advanceState(StateStopped)
	recv.logger.Info("end of stream")
	return nil, false
}

func (recv *Receiver) advanceState(newState State) {
	for {
		current := atomic.LoadInt32(&recv.state)
		if current >= int32(newState) {
			return
		}
		if atomic.CompareAndSwapInt32(&recv.state, current, int32(newState)) {
			recv.logger.Infof("state %s => %s", State(current), newState)
			return
		}
	}
}

// registerLayout checks the layout found by a reader at the end of bootstrap against other readers
func (recv *Receiver) registerLayout(rlogger logger.Logger, layout *streamLayout) bool {
	recv.windowMutex.Lock()
	defer recv.windowMutex.Unlock()
	if recv.layout == nil {
		recv.layout = layout
		recv.attrs.Freeze()
		rlogger.Infof("layout: %d channels per heap, %d X-engines per stream, %d X-engines in total, interval %d",
			layout.heapChannels, layout.streamXengs, layout.xengs, layout.interval)
	} else if *recv.layout != *layout {
		rlogger.Errorf("layout %+v conflicts with %+v from other streams", *layout, *recv.layout)
		return false
	}
	recv.bootstrapped++
	rlogger.Infof("bootstrapped (%d/%d streams)", recv.bootstrapped, len(recv.readers))
	return true
}

// placeItem puts a data item into the window and delivers frames pushed out of the window or completed
//
// The window lock is held while delivering frames, so readers are blocked until the consumer takes them.
func (recv *Receiver) placeItem(rlogger logger.Logger, timestamp uint64, slot int, item *base.Item) {
	recv.windowMutex.Lock()
	defer recv.windowMutex.Unlock()

	interval := recv.layout.interval
	if recv.window == nil {
		recv.window = newFrameWindow(timestamp, recv.activeFrames, interval, recv.layout.xengs)
		rlogger.Infof("first data heap with timestamp %d", timestamp)
		recv.advanceState(StateStreaming)
	}
	window := recv.window

	head := window.Head()
	if timestamp < head {
		rlogger.Warnf("timestamp %d is too far in the past, discarding", timestamp)
		recv.metrics.OnHeapDropped(dropTooOld)
		return
	}
	if (timestamp-head)%interval != 0 {
		rlogger.Warnf("timestamp %d does not match expected period, discarding", timestamp)
		recv.metrics.OnHeapDropped(dropMisaligned)
		return
	}

	for popped := 0; timestamp >= window.UpperEdge(); popped++ {
		if popped >= window.Len() {
			// all frames left are newly added and empty
			skipped := (timestamp-window.UpperEdge())/interval + 1
			window.Skip(skipped)
			rlogger.Warnf("timestamp %d jumps ahead, discarding %d empty frames", timestamp, skipped)
			recv.metrics.OnFramesDiscarded(discardEmpty, skipped)
			break
		}
		oldest := window.Slide()
		if oldest.Empty() {
			rlogger.Warnf("frame with timestamp %d is empty, discarding", oldest.Timestamp())
			recv.metrics.OnFrameDiscarded(discardEmpty)
		} else {
			rlogger.Warnf("frame with timestamp %d is %d/%d complete", oldest.Timestamp(), oldest.NumFilled(), oldest.NumSlots())
			recv.deliver(oldest)
		}
		recv.flushReady(rlogger)
	}

	if !window.Frame(timestamp).Put(slot, item) {
		rlogger.Warnf("duplicate data for slot %d with timestamp %d, ignored", slot, timestamp)
		recv.metrics.duplicateSlotsTotal.Inc()
	}
	recv.flushReady(rlogger)
}

func (recv *Receiver) flushReady(rlogger logger.Logger) {
	for frame := recv.window.PopReady(); frame != nil; frame = recv.window.PopReady() {
		rlogger.Debugf("flush frame with timestamp %d", frame.Timestamp())
		recv.deliver(frame)
	}
}

// deliver hands a frame over to consumer. It's counted as delivered only when taken by Get.
func (recv *Receiver) deliver(frame *base.Frame) {
	recv.completed <- completion{frame: frame}
}

// endStream is called by a reader on exit
func (recv *Receiver) endStream(streamIndex int) {
	recv.completed <- completion{streamIndex: streamIndex}
}
