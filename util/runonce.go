package util

import (
	"sync/atomic"
)

// RunOnce is a function wrapper that calls the underlying function at most once
//
// Returns true when the underlying function is actually called by this invocation
type RunOnce func() bool

// NewRunOnce creates a RunOnce for the given function, e.g. to make stop or close requests idempotent
func NewRunOnce(f func()) RunOnce {
	var invoked int32
	return func() bool {
		if atomic.CompareAndSwapInt32(&invoked, 0, 1) {
			f()
			return true
		}
		return false
	}
}
