// Package heapproto implements the heap stream wire format: self-describing heaps of named items, split into UDP-sized
// packets and reassembled on the receiving side.
//
// A heap payload is a msgpack map of item name to [shape, dtype, value, data]. A packet is a msgpack array of
// [heap counter, heap length, payload offset, payload fragment].
package heapproto

import (
	"bytes"
	"fmt"

	"github.com/ska-sa/cbf-ingest/base"
	"github.com/vmihailenco/msgpack/v4"
)

const itemFieldCount = 4

// ItemStreamStop is the control item telling receivers that the sender has ended the stream
const ItemStreamStop = "stream_stop"

// IsStreamStop checks whether the heap is an end-of-stream marker
func IsStreamStop(heap *base.Heap) bool {
	return heap.Has(ItemStreamStop)
}

// EncodeHeap encodes the given items into a heap payload
func EncodeHeap(items []*base.Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 + lenOfItemData(items))
	encoder := msgpack.NewEncoder(&buf)
	if err := encoder.EncodeMapLen(len(items)); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := encoder.EncodeString(item.Name); err != nil {
			return nil, err
		}
		if err := encodeItem(encoder, item); err != nil {
			return nil, fmt.Errorf("item '%s': %w", item.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeItem(encoder *msgpack.Encoder, item *base.Item) error {
	if err := encoder.EncodeArrayLen(itemFieldCount); err != nil {
		return err
	}
	// [0]: shape
	if err := encoder.EncodeArrayLen(len(item.Shape)); err != nil {
		return err
	}
	for _, dim := range item.Shape {
		if err := encoder.EncodeInt(int64(dim)); err != nil {
			return err
		}
	}
	// [1]: dtype
	if err := encoder.EncodeString(item.DType); err != nil {
		return err
	}
	// [2]: value
	if err := encoder.Encode(item.Value); err != nil {
		return err
	}
	// [3]: raw data
	return encoder.EncodeBytes(item.Data)
}

// DecodeHeap decodes a heap payload into items indexed by name
func DecodeHeap(payload []byte) (map[string]*base.Item, error) {
	reader := bytes.NewReader(payload)
	decoder := msgpack.NewDecoder(reader)
	numItems, err := decoder.DecodeMapLen()
	if err != nil {
		return nil, fmt.Errorf("failed to decode item map: %w", err)
	}
	if numItems < 0 {
		return nil, fmt.Errorf("nil item map")
	}
	if numItems > reader.Len() {
		return nil, fmt.Errorf("item map of %d entries exceeds remaining %d bytes", numItems, reader.Len())
	}
	items := make(map[string]*base.Item, numItems)
	for i := 0; i < numItems; i++ {
		name, nerr := decoder.DecodeString()
		if nerr != nil {
			return nil, fmt.Errorf("failed to decode name of item[%d]: %w", i, nerr)
		}
		item, ierr := decodeItem(decoder, reader, name)
		if ierr != nil {
			return nil, fmt.Errorf("item '%s': %w", name, ierr)
		}
		items[name] = item
	}
	return items, nil
}

// decodeItem decodes one item from decoder, which must read from the unbuffered reader
//
// Declared lengths are checked against the bytes left in reader before allocating.
func decodeItem(decoder *msgpack.Decoder, reader *bytes.Reader, name string) (*base.Item, error) {
	numFields, err := decoder.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if numFields != itemFieldCount {
		return nil, fmt.Errorf("expected %d fields, got %d", itemFieldCount, numFields)
	}
	item := &base.Item{Name: name}

	numDims, serr := decoder.DecodeArrayLen()
	if serr != nil {
		return nil, fmt.Errorf("shape: %w", serr)
	}
	if numDims > reader.Len() {
		return nil, fmt.Errorf("shape: %d dimensions exceed remaining %d bytes", numDims, reader.Len())
	}
	if numDims > 0 {
		item.Shape = make([]int, numDims)
		for d := range item.Shape {
			dim, derr := decoder.DecodeInt()
			if derr != nil {
				return nil, fmt.Errorf("shape[%d]: %w", d, derr)
			}
			if dim < 0 {
				return nil, fmt.Errorf("shape[%d]: negative dimension %d", d, dim)
			}
			item.Shape[d] = dim
		}
	}

	if item.DType, err = decoder.DecodeString(); err != nil {
		return nil, fmt.Errorf("dtype: %w", err)
	}
	if item.Value, err = decoder.DecodeInterfaceLoose(); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if item.Data, err = decoder.DecodeBytes(); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if len(item.Data) > 0 && len(item.Shape) > 0 {
		if elemSize := DTypeSize(item.DType); elemSize > 0 && numElements(item.Shape)*elemSize != len(item.Data) {
			return nil, fmt.Errorf("data length %d doesn't match shape %v of %s", len(item.Data), item.Shape, item.DType)
		}
	}
	return item, nil
}

// DTypeSize returns the size in bytes of the given element type, or 0 if unknown
func DTypeSize(dtype string) int {
	switch dtype {
	case "int8", "uint8":
		return 1
	case "int16", "uint16":
		return 2
	case "int32", "uint32", "float32":
		return 4
	case "int64", "uint64", "float64", "complex64":
		return 8
	case "complex128":
		return 16
	default:
		return 0
	}
}

func numElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

func lenOfItemData(items []*base.Item) int {
	total := 0
	for _, item := range items {
		total += len(item.Data)
	}
	return total
}
