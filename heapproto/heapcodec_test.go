package heapproto

import (
	"testing"

	"github.com/ska-sa/cbf-ingest/base"
	"github.com/stretchr/testify/assert"
)

func TestHeapCodec(t *testing.T) {
	payload, err := EncodeHeap([]*base.Item{
		{Name: "timestamp", Value: uint64(1 << 40)},
		{Name: "frequency", Value: 256},
		{Name: "xeng_raw", Shape: []int{4, 3, 2}, DType: "int32", Data: make([]byte, 4*3*2*4)},
		{Name: "bls_ordering", Value: [][]string{{"m000h", "m000h"}, {"m000h", "m001v"}}},
	})
	assert.NoError(t, err)

	items, derr := DecodeHeap(payload)
	assert.NoError(t, derr)
	assert.Len(t, items, 4)
	assert.Equal(t, uint64(1<<40), items["timestamp"].Value)
	assert.Equal(t, int64(256), items["frequency"].Value)
	assert.Equal(t, []int{4, 3, 2}, items["xeng_raw"].Shape)
	assert.Equal(t, "int32", items["xeng_raw"].DType)
	assert.Len(t, items["xeng_raw"].Data, 96)
	assert.Nil(t, items["xeng_raw"].Value)
	assert.Equal(t, []interface{}{
		[]interface{}{"m000h", "m000h"},
		[]interface{}{"m000h", "m001v"},
	}, items["bls_ordering"].Value)
	assert.Nil(t, items["bls_ordering"].Shape)
}

func TestHeapCodecRejectsBadData(t *testing.T) {
	payload, err := EncodeHeap([]*base.Item{
		{Name: "xeng_raw", Shape: []int{4, 2}, DType: "int32", Data: make([]byte, 12)},
	})
	assert.NoError(t, err)
	_, derr := DecodeHeap(payload)
	assert.ErrorContains(t, derr, "item 'xeng_raw': data length 12 doesn't match shape [4 2] of int32")

	_, derr = DecodeHeap([]byte{0xc0})
	assert.Error(t, derr)

	_, derr = DecodeHeap(payload[:len(payload)-3])
	assert.Error(t, derr)
}

func TestHeapCodecRejectsOversizedLengths(t *testing.T) {
	// map32 declaring 268435455 items
	_, err := DecodeHeap([]byte{0xdf, 0x0f, 0xff, 0xff, 0xff})
	assert.ErrorContains(t, err, "item map of 268435455 entries exceeds remaining 0 bytes")

	// item "x" with array32 shape declaring 4294967295 dimensions
	_, err = DecodeHeap([]byte{0x81, 0xa1, 'x', 0x94, 0xdd, 0xff, 0xff, 0xff, 0xff})
	assert.ErrorContains(t, err, "item 'x': shape: 4294967295 dimensions exceed remaining 0 bytes")
}

func TestDTypeSize(t *testing.T) {
	assert.Equal(t, 4, DTypeSize("int32"))
	assert.Equal(t, 8, DTypeSize("complex64"))
	assert.Equal(t, 0, DTypeSize("object"))
}
