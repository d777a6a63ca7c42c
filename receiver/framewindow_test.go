package receiver

import (
	"testing"

	"github.com/ska-sa/cbf-ingest/base"
	"github.com/stretchr/testify/assert"
)

func windowTimestamps(window *frameWindow) []uint64 {
	list := make([]uint64, 0, len(window.frames))
	for _, f := range window.frames {
		list = append(list, f.Timestamp())
	}
	return list
}

func TestFrameWindowSlide(t *testing.T) {
	window := newFrameWindow(100, 3, 10, 2)
	assert.Equal(t, []uint64{100, 110, 120}, windowTimestamps(window))
	assert.Equal(t, uint64(100), window.Head())
	assert.Equal(t, uint64(130), window.UpperEdge())
	assert.Equal(t, uint64(110), window.Frame(110).Timestamp())

	assert.Nil(t, window.PopReady())
	window.Frame(100).Put(0, &base.Item{Name: "xeng_raw"})
	assert.Nil(t, window.PopReady())
	window.Frame(100).Put(1, &base.Item{Name: "xeng_raw"})
	ready := window.PopReady()
	if assert.NotNil(t, ready) {
		assert.Equal(t, uint64(100), ready.Timestamp())
	}
	assert.Equal(t, []uint64{110, 120, 130}, windowTimestamps(window))

	popped := window.Slide()
	assert.True(t, popped.Empty())
	assert.Equal(t, []uint64{120, 130, 140}, windowTimestamps(window))
	assert.Equal(t, 3, window.Len())
	assert.Equal(t, 2, window.NumSlots())

	drained := window.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, uint64(120), drained[0].Timestamp())
}

func TestFrameWindowSkip(t *testing.T) {
	window := newFrameWindow(100, 2, 10, 1)
	window.Skip(5)
	assert.Equal(t, []uint64{150, 160}, windowTimestamps(window))
	assert.True(t, window.Frame(160).Empty())
}
