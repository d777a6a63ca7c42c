package heapproto

import (
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/stretchr/testify/assert"
)

func TestEncoderDecoder(t *testing.T) {
	enc, err := NewEncoder(200, 100)
	assert.NoError(t, err)
	dec := NewDecoder(logger.WithField("test", t.Name()), base.SourceSizing{LiveHeaps: 2, HeapBytes: 1024, PoolHeaps: 2})

	for i := 0; i < 3; i++ {
		datagrams, eerr := enc.Encode([]*base.Item{
			{Name: "timestamp", Value: uint64(i * 10)},
			{Name: "xeng_raw", Shape: []int{64, 2}, DType: "int32", Data: make([]byte, 64*2*4)},
		})
		assert.NoError(t, eerr)
		assert.Greater(t, len(datagrams), 1)

		var heap *base.Heap
		for j, dg := range datagrams {
			heap = dec.Feed(dg)
			if j < len(datagrams)-1 {
				assert.Nil(t, heap)
			}
		}
		if assert.NotNil(t, heap) {
			assert.Equal(t, uint64(100+i), heap.Cnt)
			assert.Equal(t, uint64(i*10), heap.Get("timestamp").Value)
			assert.Len(t, heap.Get("xeng_raw").Data, 512)
			assert.True(t, heap.Has("xeng_raw"))
			assert.False(t, heap.Has("frequency"))
		}
	}

	assert.Nil(t, dec.Feed([]byte("garbage")))
	stats := dec.Stats()
	assert.Equal(t, uint64(3), stats.Heaps)
	assert.Equal(t, uint64(1), stats.BadPackets)
	assert.Equal(t, uint64(0), stats.BadHeaps)
}

func TestEncoderStop(t *testing.T) {
	enc, err := NewEncoder(200, 7)
	assert.NoError(t, err)
	dec := NewDecoder(logger.WithField("test", t.Name()), base.SourceSizing{LiveHeaps: 1})

	datagrams, eerr := enc.EncodeStop()
	assert.NoError(t, eerr)
	assert.Len(t, datagrams, 1)
	heap := dec.Feed(datagrams[0])
	if assert.NotNil(t, heap) {
		assert.Equal(t, uint64(7), heap.Cnt)
		assert.True(t, IsStreamStop(heap))
	}
	assert.False(t, IsStreamStop(&base.Heap{Items: map[string]*base.Item{"timestamp": {Name: "timestamp"}}}))
}
