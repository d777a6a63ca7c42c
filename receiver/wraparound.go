package receiver

import (
	"github.com/ska-sa/cbf-ingest/defs"
)

type wrapDirection int

const (
	wrapNone wrapDirection = iota
	wrapForward
	wrapReverse
)

// timestampUnwrapper corrects CBF timestamps which wrap around a fixed period
//
// Heaps from different X-engines may arrive slightly out of order across a wrap, so a big jump in either direction
// is taken as a wrap (forward) or a heap from before the last wrap (reverse).
type timestampUnwrapper struct {
	period     int64
	prev       int64
	hasPrev    bool
	wrapOffset int64
}

func newTimestampUnwrapper() *timestampUnwrapper {
	return &timestampUnwrapper{period: defs.TimestampWrapPeriod}
}

// Unwrap returns the corrected timestamp and the wrap detected, if any
func (uw *timestampUnwrapper) Unwrap(raw uint64) (int64, wrapDirection) {
	corrected := int64(raw%uint64(uw.period)) + uw.wrapOffset
	direction := wrapNone
	if uw.hasPrev {
		if corrected < uw.prev-uw.period/2 {
			uw.wrapOffset += uw.period
			corrected += uw.period
			direction = wrapForward
		} else if corrected > uw.prev+uw.period/2 {
			uw.wrapOffset -= uw.period
			corrected -= uw.period
			direction = wrapReverse
		}
	}
	uw.prev = corrected
	uw.hasPrev = true
	return corrected, direction
}

// WrapOffset returns the value currently added to raw timestamps
func (uw *timestampUnwrapper) WrapOffset() int64 {
	return uw.wrapOffset
}
