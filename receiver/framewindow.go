package receiver

import (
	"github.com/ska-sa/cbf-ingest/base"
)

// frameWindow is a fixed number of frames in flight, with timestamps spaced by interval
//
// Frames only enter or leave by sliding: the oldest is popped and a new one is appended at the upper edge. It's not
// thread-safe; Receiver guards it with windowMutex.
type frameWindow struct {
	frames   []*base.Frame
	interval uint64
	numSlots int
}

func newFrameWindow(firstTimestamp uint64, numFrames int, interval uint64, numSlots int) *frameWindow {
	window := &frameWindow{
		frames:   make([]*base.Frame, numFrames),
		interval: interval,
		numSlots: numSlots,
	}
	for i := range window.frames {
		window.frames[i] = base.NewFrame(firstTimestamp+interval*uint64(i), numSlots)
	}
	return window
}

// Head returns the timestamp of the oldest frame
func (window *frameWindow) Head() uint64 {
	return window.frames[0].Timestamp()
}

// UpperEdge returns the timestamp right after the newest frame
func (window *frameWindow) UpperEdge() uint64 {
	return window.Head() + window.interval*uint64(len(window.frames))
}

// Frame returns the frame of the given timestamp, which must be within the window and aligned
func (window *frameWindow) Frame(timestamp uint64) *base.Frame {
	return window.frames[(timestamp-window.Head())/window.interval]
}

// Slide pops the oldest frame and appends a new one after the newest
func (window *frameWindow) Slide() *base.Frame {
	oldest := window.frames[0]
	next := base.NewFrame(window.frames[len(window.frames)-1].Timestamp()+window.interval, window.numSlots)
	copy(window.frames, window.frames[1:])
	window.frames[len(window.frames)-1] = next
	return oldest
}

// Skip moves the window forward by n intervals. All frames are replaced and must be empty.
func (window *frameWindow) Skip(n uint64) {
	head := window.Head() + n*window.interval
	for i := range window.frames {
		window.frames[i] = base.NewFrame(head+window.interval*uint64(i), window.numSlots)
	}
}

// PopReady slides the window if the oldest frame is ready, and returns it; otherwise returns nil
func (window *frameWindow) PopReady() *base.Frame {
	if !window.frames[0].Ready() {
		return nil
	}
	return window.Slide()
}

// Drain removes and returns all frames, oldest first. The window must not be used afterwards.
func (window *frameWindow) Drain() []*base.Frame {
	frames := window.frames
	window.frames = nil
	return frames
}

// Len returns the number of frames in flight
func (window *frameWindow) Len() int {
	return len(window.frames)
}

// NumSlots returns the number of slots of each frame
func (window *frameWindow) NumSlots() int {
	return window.numSlots
}
