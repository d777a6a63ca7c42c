package receiver

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
)

// Reasons of dropped heaps, as values of label "reason"
const (
	dropNotReady   = "metadata_not_ready"
	dropBootstrap  = "bootstrap"
	dropNonData    = "non_data"
	dropNoTime     = "no_timestamp"
	dropNoFreq     = "no_frequency"
	dropBadChannel = "bad_channel"
	dropBadShape   = "bad_shape"
	dropNegative   = "negative_timestamp"
	dropTooOld     = "too_old"
	dropMisaligned = "misaligned_timestamp"
)

// Reasons of discarded frames
const (
	discardEmpty      = "empty"
	discardIncomplete = "incomplete"
	discardUnconsumed = "unconsumed"
)

type receiverMetrics struct {
	inputBytesTotal         promext.RWCounter
	inputHeapsTotal         promext.RWCounter
	inputDumpsTotal         promext.RWCounter
	incompleteFramesTotal   promext.RWCounter
	duplicateSlotsTotal     promext.RWCounter
	attributeConflictsTotal promext.RWCounter
	runningStreams          promext.RWGauge
	droppedHeaps            map[string]promext.RWCounter
	discardedFrames         map[string]promext.RWCounter
	forwardWraps            promext.RWCounter
	reverseWraps            promext.RWCounter
}

func newReceiverMetrics(metricCreator promreg.MetricCreator) *receiverMetrics {
	droppedHeapsVec := metricCreator.AddOrGetCounterVec("dropped_heaps_total", "Numbers of received heaps dropped", []string{"reason"}, nil)
	discardedFramesVec := metricCreator.AddOrGetCounterVec("discarded_frames_total", "Numbers of frames discarded without delivery", []string{"reason"}, nil)
	wrapsVec := metricCreator.AddOrGetCounterVec("timestamp_wraps_total", "Numbers of timestamp wraps corrected", []string{"direction"}, nil)

	metrics := &receiverMetrics{
		inputBytesTotal:         metricCreator.AddOrGetCounter("input_bytes_total", "Total length in bytes of accepted data items", nil, nil),
		inputHeapsTotal:         metricCreator.AddOrGetCounter("input_heaps_total", "Numbers of accepted data heaps", nil, nil),
		inputDumpsTotal:         metricCreator.AddOrGetCounter("input_dumps_total", "Numbers of frames delivered to consumer", nil, nil),
		incompleteFramesTotal:   metricCreator.AddOrGetCounter("incomplete_frames_total", "Numbers of incomplete frames delivered", nil, nil),
		duplicateSlotsTotal:     metricCreator.AddOrGetCounter("duplicate_slots_total", "Numbers of data heaps ignored for already filled slots", nil, nil),
		attributeConflictsTotal: metricCreator.AddOrGetCounter("attribute_conflicts_total", "Numbers of conflicting attribute values ignored", nil, nil),
		runningStreams:          metricCreator.AddOrGetGauge("running_streams", "Numbers of stream readers running", nil, nil),
		droppedHeaps:            make(map[string]promext.RWCounter),
		discardedFrames:         make(map[string]promext.RWCounter),
		forwardWraps:            wrapsVec.WithLabelValues("forward"),
		reverseWraps:            wrapsVec.WithLabelValues("reverse"),
	}
	for _, reason := range []string{dropNotReady, dropBootstrap, dropNonData, dropNoTime, dropNoFreq, dropBadChannel, dropBadShape,
		dropNegative, dropTooOld, dropMisaligned} {
		metrics.droppedHeaps[reason] = droppedHeapsVec.WithLabelValues(reason)
	}
	for _, reason := range []string{discardEmpty, discardIncomplete, discardUnconsumed} {
		metrics.discardedFrames[reason] = discardedFramesVec.WithLabelValues(reason)
	}
	// reset gauge in case metricCreator is reused
	metrics.runningStreams.Set(0)
	return metrics
}

func (metrics *receiverMetrics) OnHeapDropped(reason string) {
	metrics.droppedHeaps[reason].Inc()
}

func (metrics *receiverMetrics) OnHeapAccepted(item numBytesGetter) {
	metrics.inputHeapsTotal.Inc()
	metrics.inputBytesTotal.Add(uint64(item.NumBytes()))
}

func (metrics *receiverMetrics) OnFrameDelivered(complete bool) {
	metrics.inputDumpsTotal.Inc()
	if !complete {
		metrics.incompleteFramesTotal.Inc()
	}
}

func (metrics *receiverMetrics) OnFrameDiscarded(reason string) {
	metrics.discardedFrames[reason].Inc()
}

func (metrics *receiverMetrics) OnFramesDiscarded(reason string, count uint64) {
	metrics.discardedFrames[reason].Add(count)
}

func (metrics *receiverMetrics) OnWrap(direction wrapDirection) {
	switch direction {
	case wrapForward:
		metrics.forwardWraps.Inc()
	case wrapReverse:
		metrics.reverseWraps.Inc()
	}
}

type numBytesGetter interface {
	NumBytes() int
}
