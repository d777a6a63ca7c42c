package udpsource

import (
	"net"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/heapproto"
	"github.com/ska-sa/cbf-ingest/util"
)

// udpSource receives datagrams in a network goroutine and passes completed heaps through a ring channel
//
// When the ring is full, the network goroutine stops reading and further datagrams queue up in the socket buffer or
// get dropped by kernel.
type udpSource struct {
	logger       logger.Logger
	conn         *net.UDPConn
	decoder      *heapproto.Decoder
	packetSize   int
	ring         chan *base.Heap
	closed       *channels.SignalAwaitable
	closeTimeout channels.Awaitable // signaled SourceStopTimeout after close, to abandon heaps not taken
	closeOnce    util.RunOnce
	metrics      *sourceMetrics
	lastStats    heapproto.DecoderStats
}

func newUDPSource(parentLogger logger.Logger, conn *net.UDPConn, sizing base.SourceSizing, packetSize int,
	metrics *sourceMetrics) *udpSource {

	slogger := parentLogger.WithField(defs.LabelLocal, conn.LocalAddr().String())
	closed := channels.NewSignalAwaitable()
	src := &udpSource{
		logger:       slogger,
		conn:         conn,
		decoder:      heapproto.NewDecoder(slogger, sizing),
		packetSize:   packetSize,
		ring:         make(chan *base.Heap, sizing.RingHeaps),
		closed:       closed,
		closeTimeout: closed.After(defs.SourceStopTimeout),
		metrics:      metrics,
	}
	src.closeOnce = util.NewRunOnce(func() {
		src.logger.Debug("close")
		src.closed.Signal()
		src.conn.Close()
	})
	return src
}

func (src *udpSource) launch() {
	src.metrics.openSources.Inc()
	go src.run()
}

// NextHeap returns the next heap from ring, or false after the source is closed or stopped by sender and all heaps
// already in ring have been taken
func (src *udpSource) NextHeap() (*base.Heap, bool) {
	heap, ok := <-src.ring
	return heap, ok
}

// Close stops receiving. It doesn't block and may be called more than once.
func (src *udpSource) Close() {
	src.closeOnce()
}

func (src *udpSource) run() {
	defer src.metrics.openSources.Dec()
	defer close(src.ring)
	defer src.updateMetrics()

	src.logger.Info("start receiving")
	buffer := make([]byte, src.packetSize)
	for {
		if err := src.conn.SetReadDeadline(time.Now().Add(defs.SourceReadTimeout)); err != nil {
			if !src.closed.Peek() {
				src.logger.Error("failed to set read deadline: ", err)
			}
			break
		}
		n, err := src.conn.Read(buffer)
		if err != nil {
			if util.IsNetworkTimeout(err) {
				src.updateMetrics()
				continue
			}
			if util.IsNetworkClosed(err) && src.closed.Peek() {
				src.logger.Info("closed")
			} else {
				src.logger.Error("read() error: ", err)
			}
			break
		}
		heap := src.decoder.Feed(buffer[:n])
		if heap == nil {
			continue
		}
		src.updateMetrics()
		if heapproto.IsStreamStop(heap) {
			src.logger.Info("stream stopped by sender")
			break
		}
		if !src.push(heap) {
			break
		}
	}
	src.conn.Close()
}

func (src *udpSource) push(heap *base.Heap) bool {
	select {
	case src.ring <- heap:
		return true
	case <-src.closeTimeout.Channel():
		src.logger.Warnf("abandon heap cnt=%d and the rest after stop timeout", heap.Cnt)
		return false
	}
}

func (src *udpSource) updateMetrics() {
	stats := src.decoder.Stats()
	last := src.lastStats
	src.metrics.packetsTotal.Add(stats.Packets - last.Packets)
	src.metrics.heapsTotal.Add(stats.Heaps - last.Heaps)
	src.metrics.badPacketsTotal.Add(stats.BadPackets - last.BadPackets)
	src.metrics.badHeapsTotal.Add(stats.BadHeaps - last.BadHeaps)
	src.metrics.evictedHeapsTotal.Add(stats.EvictedHeaps - last.EvictedHeaps)
	src.metrics.droppedFragmentsTotal.Add(stats.DuplicateFrag + stats.MismatchFrag + stats.OversizedFrag -
		last.DuplicateFrag - last.MismatchFrag - last.OversizedFrag)
	src.lastStats = stats
}
