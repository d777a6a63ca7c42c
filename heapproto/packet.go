package heapproto

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v4"
)

// PacketOverhead is the max size of packet fields other than the payload fragment
const PacketOverhead = 1 + 9 + 5 + 5 + 5

const packetFieldCount = 4

// Packet is one fragment of an encoded heap
type Packet struct {
	HeapCnt    uint64
	HeapLength int
	Offset     int
	Payload    []byte
}

// EncodePacket encodes a packet into the buffer
func EncodePacket(buf *bytes.Buffer, pkt Packet) error {
	encoder := msgpack.NewEncoder(buf)
	if err := encoder.EncodeArrayLen(packetFieldCount); err != nil {
		return err
	}
	if err := encoder.EncodeUint(pkt.HeapCnt); err != nil {
		return err
	}
	if err := encoder.EncodeUint(uint64(pkt.HeapLength)); err != nil {
		return err
	}
	if err := encoder.EncodeUint(uint64(pkt.Offset)); err != nil {
		return err
	}
	return encoder.EncodeBytes(pkt.Payload)
}

// DecodePacket decodes a packet from a received datagram and checks its boundaries
func DecodePacket(datagram []byte) (Packet, error) {
	pkt := Packet{}
	decoder := msgpack.NewDecoder(bytes.NewReader(datagram))
	numFields, err := decoder.DecodeArrayLen()
	if err != nil {
		return pkt, fmt.Errorf("header: %w", err)
	}
	if numFields != packetFieldCount {
		return pkt, fmt.Errorf("expected %d fields, got %d", packetFieldCount, numFields)
	}
	if pkt.HeapCnt, err = decoder.DecodeUint64(); err != nil {
		return pkt, fmt.Errorf("heap counter: %w", err)
	}
	heapLength, lerr := decoder.DecodeUint64()
	if lerr != nil {
		return pkt, fmt.Errorf("heap length: %w", lerr)
	}
	offset, oerr := decoder.DecodeUint64()
	if oerr != nil {
		return pkt, fmt.Errorf("offset: %w", oerr)
	}
	if heapLength == 0 || heapLength > math.MaxUint32 {
		return pkt, fmt.Errorf("invalid heap length %d", heapLength)
	}
	pkt.HeapLength = int(heapLength)
	pkt.Offset = int(offset)
	if pkt.Payload, err = decoder.DecodeBytes(); err != nil {
		return pkt, fmt.Errorf("payload: %w", err)
	}
	if len(pkt.Payload) == 0 {
		return pkt, fmt.Errorf("empty payload")
	}
	if offset+uint64(len(pkt.Payload)) > heapLength {
		return pkt, fmt.Errorf("payload [%d, %d) beyond heap length %d", offset, offset+uint64(len(pkt.Payload)), heapLength)
	}
	return pkt, nil
}

// Splitter cuts encoded heaps into datagrams
type Splitter struct {
	packetSize int
	buf        bytes.Buffer
}

// NewSplitter creates a Splitter producing datagrams of at most packetSize bytes
func NewSplitter(packetSize int) (*Splitter, error) {
	if packetSize <= PacketOverhead {
		return nil, fmt.Errorf("packet size %d is too small", packetSize)
	}
	return &Splitter{packetSize: packetSize}, nil
}

// Split cuts the heap payload into datagrams. Each datagram is a new slice owned by the caller.
func (splitter *Splitter) Split(heapCnt uint64, heapPayload []byte) ([][]byte, error) {
	if len(heapPayload) == 0 {
		return nil, fmt.Errorf("empty heap")
	}
	maxFragment := splitter.packetSize - PacketOverhead
	datagrams := make([][]byte, 0, (len(heapPayload)+maxFragment-1)/maxFragment)
	for offset := 0; offset < len(heapPayload); offset += maxFragment {
		end := offset + maxFragment
		if end > len(heapPayload) {
			end = len(heapPayload)
		}
		splitter.buf.Reset()
		if err := EncodePacket(&splitter.buf, Packet{
			HeapCnt:    heapCnt,
			HeapLength: len(heapPayload),
			Offset:     offset,
			Payload:    heapPayload[offset:end],
		}); err != nil {
			return nil, err
		}
		datagrams = append(datagrams, append([]byte(nil), splitter.buf.Bytes()...))
	}
	return datagrams, nil
}
