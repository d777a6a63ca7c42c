package base

import (
	"fmt"

	"github.com/samber/lo"
)

// Frame is a group of xeng_raw data items with a common timestamp, one slot per X-engine
//
// A Frame is owned by the receiver's window while incomplete and by the consumer after delivery.
type Frame struct {
	timestamp uint64
	items     []*Item
	filled    int
}

// NewFrame creates an empty frame
func NewFrame(timestamp uint64, numSlots int) *Frame {
	return &Frame{
		timestamp: timestamp,
		items:     make([]*Item, numSlots),
		filled:    0,
	}
}

// Timestamp returns the corrected timestamp shared by all slots
func (frame *Frame) Timestamp() uint64 {
	return frame.timestamp
}

// NumSlots returns the number of X-engine slots
func (frame *Frame) NumSlots() int {
	return len(frame.items)
}

// NumFilled returns the number of slots filled
func (frame *Frame) NumFilled() int {
	return frame.filled
}

// Slot returns the data item in the given slot, or nil if missing
func (frame *Frame) Slot(index int) *Item {
	return frame.items[index]
}

// Put fills the slot if it's empty. Returns false if the slot has been filled before.
func (frame *Frame) Put(index int, item *Item) bool {
	if frame.items[index] != nil {
		return false
	}
	frame.items[index] = item
	frame.filled++
	return true
}

// Ready checks whether all slots are filled
func (frame *Frame) Ready() bool {
	return frame.filled == len(frame.items)
}

// Empty checks whether no slot is filled
func (frame *Frame) Empty() bool {
	return frame.filled == 0
}

// NumBytes returns the total size of data in all filled slots
func (frame *Frame) NumBytes() int {
	return lo.SumBy(frame.items, func(item *Item) int {
		if item == nil {
			return 0
		}
		return item.NumBytes()
	})
}

func (frame *Frame) String() string {
	return fmt.Sprintf("Frame(ts=%d, %d/%d)", frame.timestamp, frame.filled, len(frame.items))
}
