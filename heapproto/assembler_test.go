package heapproto

import (
	"bytes"
	"testing"

	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/stretchr/testify/assert"
)

func makeHeapPayload(length int, seed byte) []byte {
	payload := make([]byte, length)
	for i := range payload {
		payload[i] = seed + byte(i%251)
	}
	return payload
}

func splitToPackets(t *testing.T, packetSize int, cnt uint64, payload []byte) []Packet {
	splitter, err := NewSplitter(packetSize)
	assert.NoError(t, err)
	datagrams, serr := splitter.Split(cnt, payload)
	assert.NoError(t, serr)
	packets := make([]Packet, len(datagrams))
	for i, dg := range datagrams {
		assert.LessOrEqual(t, len(dg), packetSize)
		pkt, derr := DecodePacket(dg)
		assert.NoError(t, derr)
		packets[i] = pkt
	}
	return packets
}

func TestSplitterAndPacketCodec(t *testing.T) {
	payload := makeHeapPayload(1000, 1)
	packets := splitToPackets(t, 125, 77, payload)
	assert.Len(t, packets, 10)
	for i, pkt := range packets {
		assert.Equal(t, uint64(77), pkt.HeapCnt)
		assert.Equal(t, 1000, pkt.HeapLength)
		assert.Equal(t, i*100, pkt.Offset)
		assert.Equal(t, payload[i*100:i*100+100], pkt.Payload)
	}

	_, err := NewSplitter(PacketOverhead)
	assert.Error(t, err)
}

func TestDecodePacketRejectsOutOfBounds(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, EncodePacket(&buf, Packet{HeapCnt: 1, HeapLength: 10, Offset: 8, Payload: []byte{1, 2, 3}}))
	_, err := DecodePacket(buf.Bytes())
	assert.ErrorContains(t, err, "beyond heap length")

	buf.Reset()
	assert.NoError(t, EncodePacket(&buf, Packet{HeapCnt: 1, HeapLength: 0, Offset: 0, Payload: []byte{1}}))
	_, err = DecodePacket(buf.Bytes())
	assert.ErrorContains(t, err, "invalid heap length")

	_, err = DecodePacket([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestAssemblerOutOfOrder(t *testing.T) {
	asm := NewAssembler(2, 1024, 2)
	payload := makeHeapPayload(1000, 3)
	packets := splitToPackets(t, 225, 5, payload)
	assert.Len(t, packets, 5)

	order := []int{3, 0, 4, 2}
	for _, i := range order {
		assert.Nil(t, asm.Add(packets[i]))
	}
	assert.Equal(t, 1, asm.NumLive())
	out := asm.Add(packets[1])
	assert.Equal(t, payload, out)
	assert.Equal(t, 0, asm.NumLive())
	asm.Release(out)

	stats := asm.Stats()
	assert.Equal(t, uint64(5), stats.Packets)
	assert.Equal(t, uint64(1), stats.Heaps)
}

func TestAssemblerSinglePacket(t *testing.T) {
	asm := NewAssembler(2, 1024, 2)
	payload := makeHeapPayload(50, 0)
	packets := splitToPackets(t, 1000, 9, payload)
	assert.Len(t, packets, 1)
	assert.Equal(t, payload, asm.Add(packets[0]))
	assert.Equal(t, 0, asm.NumLive())
}

func TestAssemblerDuplicateAndMismatch(t *testing.T) {
	asm := NewAssembler(2, 1024, 2)
	payload := makeHeapPayload(300, 7)
	packets := splitToPackets(t, 125, 1, payload)
	assert.Len(t, packets, 3)

	assert.Nil(t, asm.Add(packets[0]))
	assert.Nil(t, asm.Add(packets[0]))
	mismatched := packets[1]
	mismatched.HeapLength = 400
	assert.Nil(t, asm.Add(mismatched))
	assert.Nil(t, asm.Add(packets[1]))
	assert.Equal(t, payload, asm.Add(packets[2]))

	stats := asm.Stats()
	assert.Equal(t, uint64(1), stats.DuplicateFrag)
	assert.Equal(t, uint64(1), stats.MismatchFrag)
	assert.Equal(t, uint64(1), stats.Heaps)
}

func TestAssemblerEviction(t *testing.T) {
	asm := NewAssembler(2, 1024, 4)
	heaps := make([][]Packet, 3)
	payloads := make([][]byte, 3)
	for i := range heaps {
		payloads[i] = makeHeapPayload(200, byte(i))
		heaps[i] = splitToPackets(t, 125, uint64(i+10), payloads[i])
		assert.Len(t, heaps[i], 2)
	}

	assert.Nil(t, asm.Add(heaps[0][0]))
	assert.Nil(t, asm.Add(heaps[1][0]))
	assert.Nil(t, asm.Add(heaps[2][0])) // evicts heap 0
	assert.Equal(t, 2, asm.NumLive())
	assert.Equal(t, uint64(1), asm.Stats().EvictedHeaps)

	assert.Nil(t, asm.Add(heaps[0][1])) // restarts heap 0, evicts heap 1
	assert.Equal(t, payloads[2], asm.Add(heaps[2][1]))
	assert.Equal(t, uint64(2), asm.Stats().EvictedHeaps)
}

func TestAssemblerLargeHeapOutsidePool(t *testing.T) {
	asm := NewAssembler(1, 100, 1)
	payload := makeHeapPayload(250, 9)
	packets := splitToPackets(t, 125, 2, payload)
	for _, pkt := range packets[:len(packets)-1] {
		assert.Nil(t, asm.Add(pkt))
	}
	out := asm.Add(packets[len(packets)-1])
	assert.Equal(t, payload, out)
	asm.Release(out)
}

func TestAssemblerRejectsOversizedHeap(t *testing.T) {
	asm := NewAssembler(2, 100, 2)
	pkt := Packet{HeapCnt: 1, HeapLength: defs.MaxHeapLength + 1, Offset: 0, Payload: []byte{1}}
	assert.Nil(t, asm.Add(pkt))
	assert.Equal(t, 0, asm.NumLive())
	assert.Equal(t, uint64(1), asm.Stats().OversizedFrag)
	assert.Equal(t, uint64(0), asm.Stats().Packets)
}
