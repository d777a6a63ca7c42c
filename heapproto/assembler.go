package heapproto

import (
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/util"
)

// AssemblerStats counts the outcome of packets fed into an Assembler
type AssemblerStats struct {
	Packets       uint64 // all packets accepted for assembly
	Heaps         uint64 // completed heaps
	EvictedHeaps  uint64 // incomplete heaps evicted due to liveHeaps limit
	DuplicateFrag uint64 // packets dropped as duplicate or overlapping fragment
	MismatchFrag  uint64 // packets dropped for disagreeing on heap length
	OversizedFrag uint64 // packets dropped for a heap length over defs.MaxHeapLength
}

// Assembler reassembles packets into heap payloads, with a limited number of heaps in progress
//
// Assembler is not thread-safe. Each source runs one Assembler in its network goroutine.
type Assembler struct {
	liveHeaps int
	live      []*liveHeap // ordered by first packet arrival, oldest first
	buffers   *util.FreeList[[]byte]
	heapBytes int
	stats     AssemblerStats
}

type liveHeap struct {
	cnt       uint64
	buf       []byte
	length    int
	received  int
	fragments map[int]int // offset => length
}

// NewAssembler creates an Assembler
//
// Buffers of heapBytes are reused for heaps fitting in them; up to poolHeaps free buffers are kept. Larger heaps are
// allocated on demand.
func NewAssembler(liveHeaps int, heapBytes int, poolHeaps int) *Assembler {
	if liveHeaps < 1 {
		liveHeaps = 1
	}
	asm := &Assembler{
		liveHeaps: liveHeaps,
		live:      make([]*liveHeap, 0, liveHeaps+1),
		heapBytes: heapBytes,
	}
	asm.buffers = util.NewFreeList(poolHeaps, func() []byte {
		return make([]byte, asm.heapBytes)
	})
	return asm
}

// Add feeds a packet and returns the payload of the heap completed by it, or nil
//
// The returned payload should be passed to Release after use
func (asm *Assembler) Add(pkt Packet) []byte {
	// single-packet heap
	if pkt.Offset == 0 && len(pkt.Payload) == pkt.HeapLength && asm.find(pkt.HeapCnt) < 0 {
		asm.stats.Packets++
		asm.stats.Heaps++
		return pkt.Payload
	}

	index := asm.find(pkt.HeapCnt)
	var heap *liveHeap
	if index < 0 {
		if pkt.HeapLength > defs.MaxHeapLength {
			asm.stats.OversizedFrag++
			return nil
		}
		heap = asm.start(pkt)
		index = len(asm.live) - 1
	} else {
		heap = asm.live[index]
	}

	if heap.length != pkt.HeapLength {
		asm.stats.MismatchFrag++
		return nil
	}
	if _, exists := heap.fragments[pkt.Offset]; exists || heap.received+len(pkt.Payload) > heap.length {
		asm.stats.DuplicateFrag++
		return nil
	}
	copy(heap.buf[pkt.Offset:], pkt.Payload)
	heap.fragments[pkt.Offset] = len(pkt.Payload)
	heap.received += len(pkt.Payload)
	asm.stats.Packets++

	if heap.received < heap.length {
		return nil
	}
	asm.remove(index)
	if !fragmentsCover(heap.fragments, heap.length) {
		// overlapping fragments added up to the total length without covering it
		asm.stats.DuplicateFrag++
		asm.Release(heap.buf)
		return nil
	}
	asm.stats.Heaps++
	return heap.buf[:heap.length]
}

// Release returns the buffer of a completed heap for reuse
func (asm *Assembler) Release(payload []byte) {
	if asm.heapBytes > 0 && cap(payload) == asm.heapBytes {
		asm.buffers.Put(payload[:asm.heapBytes])
	}
}

// NumLive returns the number of incomplete heaps
func (asm *Assembler) NumLive() int {
	return len(asm.live)
}

// Stats returns the counters
func (asm *Assembler) Stats() AssemblerStats {
	return asm.stats
}

func (asm *Assembler) find(cnt uint64) int {
	for i := len(asm.live) - 1; i >= 0; i-- {
		if asm.live[i].cnt == cnt {
			return i
		}
	}
	return -1
}

func (asm *Assembler) start(pkt Packet) *liveHeap {
	if len(asm.live) >= asm.liveHeaps {
		oldest := asm.live[0]
		asm.remove(0)
		asm.Release(oldest.buf)
		asm.stats.EvictedHeaps++
	}
	var buf []byte
	if pkt.HeapLength <= asm.heapBytes {
		buf = asm.buffers.Get()
	} else {
		buf = make([]byte, pkt.HeapLength)
	}
	heap := &liveHeap{
		cnt:       pkt.HeapCnt,
		buf:       buf,
		length:    pkt.HeapLength,
		received:  0,
		fragments: make(map[int]int),
	}
	asm.live = append(asm.live, heap)
	return heap
}

func (asm *Assembler) remove(index int) {
	copy(asm.live[index:], asm.live[index+1:])
	asm.live[len(asm.live)-1] = nil
	asm.live = asm.live[:len(asm.live)-1]
}

func fragmentsCover(fragments map[int]int, length int) bool {
	end := 0
	for end < length {
		fragLen, ok := fragments[end]
		if !ok {
			return false
		}
		end += fragLen
	}
	return end == length
}
