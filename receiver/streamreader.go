package receiver

import (
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/spf13/cast"
)

// streamLayout describes how data heaps of all streams map into frames, determined at the end of bootstrap
type streamLayout struct {
	heapChannels   int    // channels per data heap
	heapBytes      int    // size of xeng_raw per data heap
	streamChannels int    // channels per stream
	streamXengs    int    // X-engines (data heaps per dump) per stream
	xengs          int    // X-engines of all streams in the channel range, i.e. slots per frame
	interval       uint64 // timestamp difference between dumps
}

// streamReader reads heaps from one substream: it collects metadata until all critical attributes are known, then
// subscribes again at full rate and places data heaps into the receiver's window
type streamReader struct {
	logger    logger.Logger
	recv      *Receiver
	endpoint  base.Endpoint
	factory   base.HeapSourceFactory
	source    base.HeapSource // bootstrap subscription opened by NewReceiver
	unwrapper *timestampUnwrapper
	stopped   *channels.SignalAwaitable
}

func newStreamReader(parentLogger logger.Logger, recv *Receiver, endpoint base.Endpoint, factory base.HeapSourceFactory,
	bootstrapSource base.HeapSource) *streamReader {
	return &streamReader{
		logger:    parentLogger.WithField(defs.LabelComponent, "StreamReader"),
		recv:      recv,
		endpoint:  endpoint,
		factory:   factory,
		source:    bootstrapSource,
		unwrapper: newTimestampUnwrapper(),
		stopped:   channels.NewSignalAwaitable(),
	}
}

func (reader *streamReader) Launch() {
	reader.recv.metrics.runningStreams.Inc()
	go reader.run()
}

func (reader *streamReader) Stopped() channels.Awaitable {
	return reader.stopped
}

func (reader *streamReader) run() {
	defer reader.stopped.Signal()
	defer reader.recv.endStream(reader.endpoint.Index)
	defer reader.recv.metrics.runningStreams.Dec()

	bootstrapAbort := reader.launchSourceCloser(reader.source, "bootstrap")
	layout := reader.bootstrap()
	bootstrapAbort.Signal()
	if layout == nil {
		return
	}
	if !reader.recv.registerLayout(reader.logger, layout) {
		return
	}

	sizing := newFullRateSizing(layout, reader.recv.activeFrames)
	source, err := reader.factory.OpenSource(reader.logger, reader.endpoint, sizing)
	if err != nil {
		reader.logger.Errorf("failed to subscribe at full rate: %s", err.Error())
		return
	}
	reader.logger.Infof("subscribed at full rate: %+v", sizing)
	abort := reader.launchSourceCloser(source, "full-rate")
	defer abort.Signal()

	for {
		heap, ok := source.NextHeap()
		if !ok {
			break
		}
		reader.processHeap(heap, layout)
	}
	reader.logger.Info("stream ended")
}

// launchSourceCloser closes the source on stop request or when the returned signal is triggered
func (reader *streamReader) launchSourceCloser(source base.HeapSource, kind string) *channels.SignalAwaitable {
	abortSource := channels.NewSignalAwaitable()
	go func() {
		channels.AnyAwaitables(reader.recv.stopRequest, abortSource).Next(func() {
			if abortSource.Peek() {
				reader.logger.Debugf("close %s subscription", kind)
			} else {
				reader.logger.Infof("close %s subscription on stop request", kind)
			}
		}).WaitForever()
		source.Close()
	}()
	return abortSource
}

// bootstrap reads heaps until all critical attributes are known and a data heap arrives, or returns nil if the stream
// ends before that
func (reader *streamReader) bootstrap() *streamLayout {
	reader.pollAttrStore()
	for {
		heap, ok := reader.source.NextHeap()
		if !ok {
			reader.logger.Info("stream ended during bootstrap")
			return nil
		}
		reader.pollAttrStore()
		reader.mergeMetadata(heap)
		reader.publishMetadata(heap)

		tsItem := heap.Get(defs.ItemTimestamp)
		if tsItem == nil {
			continue
		}
		if missing := reader.recv.attrs.Missing(); len(missing) > 0 {
			reader.logger.Warnf("dropping heap with timestamp %v because metadata not ready, missing=%v", tsItem.Value, missing)
			reader.recv.metrics.OnHeapDropped(dropNotReady)
			continue
		}
		if !heap.Has(defs.ItemXengRaw) {
			reader.logger.Debugf("dropping non-data heap with timestamp %v during bootstrap", tsItem.Value)
			reader.recv.metrics.OnHeapDropped(dropNonData)
			continue
		}
		// the heap completing bootstrap is dropped too
		reader.logger.Debugf("metadata ready at heap with timestamp %v", tsItem.Value)
		reader.recv.metrics.OnHeapDropped(dropBootstrap)
		return reader.computeLayout(heap.Get(defs.ItemXengRaw))
	}
}

func (reader *streamReader) computeLayout(xengRaw *base.Item) *streamLayout {
	if len(xengRaw.Shape) == 0 || xengRaw.Shape[0] <= 0 {
		reader.logger.Errorf("invalid shape of %s: %v", defs.ItemXengRaw, xengRaw.Shape)
		return nil
	}
	numStreams := len(reader.recv.readers)
	layout := &streamLayout{
		heapChannels:   xengRaw.Shape[0],
		heapBytes:      xengRaw.NumBytes(),
		streamChannels: reader.recv.channelRange.Len() / numStreams,
		interval:       reader.recv.attrs.Snapshot().Interval(),
	}
	if layout.streamChannels%layout.heapChannels != 0 {
		reader.logger.Errorf("number of channels in %s (%d) does not divide into per-stream channels (%d)",
			defs.ItemXengRaw, layout.heapChannels, layout.streamChannels)
		return nil
	}
	layout.streamXengs = layout.streamChannels / layout.heapChannels
	layout.xengs = reader.recv.channelRange.Len() / layout.heapChannels
	return layout
}

func newFullRateSizing(layout *streamLayout, activeFrames int) base.SourceSizing {
	liveHeaps := layout.streamXengs + defs.SourceLiveHeapsMargin
	return base.SourceSizing{
		LiveHeaps: liveHeaps,
		RingHeaps: defs.SourceRingHeaps,
		HeapBytes: layout.heapBytes + defs.SourceHeapBytesMargin,
		PoolHeaps: defs.SourceRingHeaps + liveHeaps + layout.streamXengs*(activeFrames+defs.SourcePoolFramesMargin),
	}
}

// pollAttrStore looks for missing critical attributes in the state store
func (reader *streamReader) pollAttrStore() {
	store := reader.recv.attrStore
	if store == nil {
		return
	}
	for _, name := range reader.recv.attrs.Missing() {
		value, ok := store.Get(reader.recv.cbfName + "_" + name)
		if !ok || value == nil {
			continue
		}
		reader.mergeAttribute(name, value, "state store")
	}
}

// mergeMetadata harvests critical attributes from the heap. Neither heaps nor state store is authoritative; the first
// value wins.
func (reader *streamReader) mergeMetadata(heap *base.Heap) {
	for name, item := range heap.Items {
		if isDataItem(name) || reader.isSensor(name) || item.Value == nil {
			continue
		}
		reader.mergeAttribute(name, item.Value, "heap")
	}
}

func (reader *streamReader) mergeAttribute(name string, value interface{}, origin string) {
	result, err := reader.recv.attrs.Merge(name, value)
	if err != nil {
		reader.logger.Warnf("invalid value of %s from %s: %v (%s)", name, origin, value, err.Error())
		return
	}
	switch result {
	case mergeApplied:
		reader.logger.Infof("set critical attribute from %s: %s => %v", origin, name, value)
	case mergeConflict:
		reader.logger.Warnf("attribute %s is already set, not setting to %v from %s", name, value, origin)
		reader.recv.metrics.attributeConflictsTotal.Inc()
	}
}

// publishMetadata passes metadata items of the heap to the publisher
func (reader *streamReader) publishMetadata(heap *base.Heap) {
	publisher := reader.recv.publisher
	if publisher == nil {
		return
	}
	for name, item := range heap.Items {
		if isDataItem(name) {
			continue
		}
		value := item.Value
		if value == nil && item.Data != nil {
			value = item
		}
		publisher.PublishMetadata(name, value, reader.isSensor(name))
	}
}

func (reader *streamReader) isSensor(name string) bool {
	return reader.recv.sensors != nil && reader.recv.sensors.IsSensor(name)
}

func isDataItem(name string) bool {
	return name == defs.ItemTimestamp || name == defs.ItemFrequency || name == defs.ItemXengRaw
}

// processHeap validates a heap received at full rate and places its data into the window
func (reader *streamReader) processHeap(heap *base.Heap, layout *streamLayout) {
	metrics := reader.recv.metrics
	index := reader.endpoint.Index

	xengRaw := heap.Get(defs.ItemXengRaw)
	if xengRaw == nil {
		reader.logger.Debugf("CBF non-data heap received on stream %d", index)
		metrics.OnHeapDropped(dropNonData)
		return
	}
	tsItem := heap.Get(defs.ItemTimestamp)
	if tsItem == nil {
		reader.logger.Warnf("CBF heap without timestamp received on stream %d", index)
		metrics.OnHeapDropped(dropNoTime)
		return
	}
	rawTimestamp, terr := cast.ToUint64E(tsItem.Value)
	if terr != nil {
		reader.logger.Warnf("CBF heap with invalid timestamp %v received on stream %d", tsItem.Value, index)
		metrics.OnHeapDropped(dropNoTime)
		return
	}

	channelRange := reader.recv.channelRange
	var channel0 int
	if freqItem := heap.Get(defs.ItemFrequency); freqItem != nil {
		ch, ferr := cast.ToIntE(freqItem.Value)
		if ferr != nil {
			reader.logger.Warnf("CBF heap with invalid frequency %v on stream %d", freqItem.Value, index)
			metrics.OnHeapDropped(dropBadChannel)
			return
		}
		channel0 = ch
	} else {
		// legacy format with only one X-engine per stream
		if layout.streamXengs != 1 {
			reader.logger.Warnf("CBF heap without frequency received on stream %d", index)
			metrics.OnHeapDropped(dropNoFreq)
			return
		}
		channel0 = channelRange.Start + layout.streamChannels*index
	}
	heapRange := base.ChannelRange{Start: channel0, Stop: channel0 + layout.heapChannels}
	if !heapRange.IsAligned(layout.heapChannels) || !heapRange.IsSubsetOf(channelRange) {
		reader.logger.Warnf("CBF heap with invalid channel %d on stream %d", channel0, index)
		metrics.OnHeapDropped(dropBadChannel)
		return
	}
	if len(xengRaw.Shape) == 0 || xengRaw.Shape[0] != layout.heapChannels {
		reader.logger.Warnf("CBF heap with unexpected shape %v on stream %d", xengRaw.Shape, index)
		metrics.OnHeapDropped(dropBadShape)
		return
	}
	slot := (channel0 - channelRange.Start) / layout.heapChannels

	timestamp, wrap := reader.unwrapper.Unwrap(rawTimestamp)
	switch wrap {
	case wrapForward:
		reader.logger.Warnf("data timestamps wrapped: raw=%d corrected=%d stream=%d", rawTimestamp, timestamp, index)
	case wrapReverse:
		reader.logger.Warnf("data timestamps reverse wrapped: raw=%d corrected=%d stream=%d", rawTimestamp, timestamp, index)
	}
	metrics.OnWrap(wrap)
	if timestamp < 0 {
		reader.logger.Warnf("negative timestamp after correction: raw=%d corrected=%d stream=%d, discarding", rawTimestamp, timestamp, index)
		metrics.OnHeapDropped(dropNegative)
		return
	}
	reader.logger.Debugf("received heap with timestamp %d on stream %d, channel %d", timestamp, index, channel0)

	metrics.OnHeapAccepted(xengRaw)
	reader.recv.placeItem(reader.logger, uint64(timestamp), slot, xengRaw)
}
