package heapproto

import (
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
)

// DecoderStats counts the outcome of datagrams fed into a Decoder
type DecoderStats struct {
	AssemblerStats
	BadPackets uint64 // undecodable datagrams
	BadHeaps   uint64 // reassembled heaps failing to decode
}

// Decoder turns datagrams into heaps
type Decoder struct {
	logger     logger.Logger
	assembler  *Assembler
	badPackets uint64
	badHeaps   uint64
}

// NewDecoder creates a Decoder with memory limits from the given sizing
func NewDecoder(parentLogger logger.Logger, sizing base.SourceSizing) *Decoder {
	return &Decoder{
		logger:    parentLogger,
		assembler: NewAssembler(sizing.LiveHeaps, sizing.HeapBytes, sizing.PoolHeaps),
	}
}

// Feed decodes a datagram and returns the heap completed by it, or nil
//
// Errors are logged and counted. The datagram may be reused by caller after return.
func (dec *Decoder) Feed(datagram []byte) *base.Heap {
	pkt, perr := DecodePacket(datagram)
	if perr != nil {
		dec.badPackets++
		dec.logger.Debugf("dropped bad packet of %d bytes: %s", len(datagram), perr.Error())
		return nil
	}
	payload := dec.assembler.Add(pkt)
	if payload == nil {
		return nil
	}
	defer dec.assembler.Release(payload)

	items, herr := DecodeHeap(payload)
	if herr != nil {
		dec.badHeaps++
		dec.logger.Warnf("dropped bad heap cnt=%d: %s", pkt.HeapCnt, herr.Error())
		return nil
	}
	return &base.Heap{
		Cnt:       pkt.HeapCnt,
		Items:     items,
		RawLength: len(payload),
	}
}

// Stats returns the counters
func (dec *Decoder) Stats() DecoderStats {
	return DecoderStats{
		AssemblerStats: dec.assembler.Stats(),
		BadPackets:     dec.badPackets,
		BadHeaps:       dec.badHeaps,
	}
}

// Encoder turns heaps into datagrams, for senders and tests
type Encoder struct {
	splitter *Splitter
	nextCnt  uint64
}

// NewEncoder creates an Encoder producing datagrams of at most packetSize bytes
//
// Heap counters start at firstCnt and increase by one per heap
func NewEncoder(packetSize int, firstCnt uint64) (*Encoder, error) {
	splitter, err := NewSplitter(packetSize)
	if err != nil {
		return nil, err
	}
	return &Encoder{splitter: splitter, nextCnt: firstCnt}, nil
}

// Encode encodes the items as the next heap and returns its datagrams
func (enc *Encoder) Encode(items []*base.Item) ([][]byte, error) {
	payload, err := EncodeHeap(items)
	if err != nil {
		return nil, err
	}
	datagrams, serr := enc.splitter.Split(enc.nextCnt, payload)
	if serr != nil {
		return nil, serr
	}
	enc.nextCnt++
	return datagrams, nil
}

// EncodeStop encodes an end-of-stream marker as the next heap
func (enc *Encoder) EncodeStop() ([][]byte, error) {
	return enc.Encode([]*base.Item{{Name: ItemStreamStop, Value: true}})
}
