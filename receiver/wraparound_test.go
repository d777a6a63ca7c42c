package receiver

import (
	"testing"

	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/stretchr/testify/assert"
)

func TestTimestampUnwrapperForwardAndReverse(t *testing.T) {
	period := defs.TimestampWrapPeriod
	uw := newTimestampUnwrapper()

	ts, dir := uw.Unwrap(uint64(period - 20))
	assert.Equal(t, period-20, ts)
	assert.Equal(t, wrapNone, dir)

	ts, dir = uw.Unwrap(uint64(period - 10))
	assert.Equal(t, period-10, ts)
	assert.Equal(t, wrapNone, dir)

	// wrapped
	ts, dir = uw.Unwrap(0)
	assert.Equal(t, period, ts)
	assert.Equal(t, wrapForward, dir)
	assert.Equal(t, period, uw.WrapOffset())

	// late heap from another X-engine before the wrap
	ts, dir = uw.Unwrap(uint64(period - 10))
	assert.Equal(t, period-10, ts)
	assert.Equal(t, wrapReverse, dir)
	assert.Equal(t, int64(0), uw.WrapOffset())

	// and the next one after the wrap again
	ts, dir = uw.Unwrap(10)
	assert.Equal(t, period+10, ts)
	assert.Equal(t, wrapForward, dir)
}

func TestTimestampUnwrapperSmallReorder(t *testing.T) {
	uw := newTimestampUnwrapper()
	for _, raw := range []uint64{100, 90, 110, 100, 120} {
		ts, dir := uw.Unwrap(raw)
		assert.Equal(t, int64(raw), ts)
		assert.Equal(t, wrapNone, dir)
	}
}

func TestTimestampUnwrapperRoundTrip(t *testing.T) {
	period := uint64(defs.TimestampWrapPeriod)
	uw := newTimestampUnwrapper()
	start := period - 25
	// true timestamps ascending with small local reordering, sent modulo period
	trueTimestamps := []uint64{start, start + 10, start + 5, start + 20, start + 15, start + 30, start + 25, start + 40}
	for _, want := range trueTimestamps {
		ts, _ := uw.Unwrap(want % period)
		assert.Equal(t, int64(want), ts)
	}
}
