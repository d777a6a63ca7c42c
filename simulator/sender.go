package simulator

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/heapproto"
	"golang.org/x/net/ipv4"
)

// metadataEvery is how often metadata heaps are repeated, in dumps, for receivers joining late
const metadataEvery = 8

// Sender sends the heaps of a simulated CBF to its substream endpoints over UDP
type Sender struct {
	logger   logger.Logger
	cbf      *CBF
	conns    []*net.UDPConn
	encoders []*heapproto.Encoder
	numSent  int
}

// NewSender connects to all endpoints, one per substream
//
// Multicast traffic is sent through the given interface, or the system default if empty.
func NewSender(parentLogger logger.Logger, cbf *CBF, endpoints []base.Endpoint, packetSize int, ifaceName string) (*Sender, error) {
	if len(endpoints) != cbf.Params().NumStreams {
		return nil, fmt.Errorf("expected %d endpoints, got %d", cbf.Params().NumStreams, len(endpoints))
	}
	var iface *net.Interface
	if ifaceName != "" {
		i, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", ifaceName, err)
		}
		iface = i
	}
	sender := &Sender{
		logger: parentLogger.WithField(defs.LabelComponent, "Sender"),
		cbf:    cbf,
	}
	for _, ep := range endpoints {
		conn, err := sender.dial(ep, iface)
		if err != nil {
			sender.closeConns()
			return nil, fmt.Errorf("failed to connect to %s: %w", ep, err)
		}
		enc, eerr := heapproto.NewEncoder(packetSize, 1)
		if eerr != nil {
			conn.Close()
			sender.closeConns()
			return nil, eerr
		}
		sender.conns = append(sender.conns, conn)
		sender.encoders = append(sender.encoders, enc)
	}
	return sender, nil
}

func (sender *Sender) dial(endpoint base.Endpoint, iface *net.Interface) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", endpoint.String())
	if err != nil {
		return nil, err
	}
	conn, derr := net.DialUDP("udp4", nil, addr)
	if derr != nil {
		return nil, derr
	}
	if endpoint.IsMulticast() {
		pconn := ipv4.NewPacketConn(conn)
		if iface != nil {
			if ierr := pconn.SetMulticastInterface(iface); ierr != nil {
				conn.Close()
				return nil, ierr
			}
		}
		if lerr := pconn.SetMulticastLoopback(true); lerr != nil {
			sender.logger.Warnf("failed to enable multicast loopback: %s", lerr.Error())
		}
	}
	return conn, nil
}

// SendMetadata sends a metadata heap to every substream
func (sender *Sender) SendMetadata() error {
	items := sender.cbf.MetadataHeap()
	for stream := range sender.conns {
		if err := sender.send(stream, items); err != nil {
			return err
		}
	}
	return nil
}

// SendDump sends the data heaps of a dump to every substream
func (sender *Sender) SendDump(dump int) error {
	for stream := range sender.conns {
		for _, items := range sender.cbf.DataHeaps(stream, dump) {
			if err := sender.send(stream, items); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run sends metadata and then dumps at the given period until numDumps are sent (0 for unlimited) or stop requested
//
// Metadata is repeated every few dumps. Returns the number of dumps sent.
func (sender *Sender) Run(numDumps int, period time.Duration, stopRequest channels.Awaitable) (int, error) {
	sender.logger.Infof("start sending to %d substreams, period %s", len(sender.conns), period)
	dump := 0
	for numDumps == 0 || dump < numDumps {
		if dump%metadataEvery == 0 {
			if err := sender.SendMetadata(); err != nil {
				return dump, err
			}
		}
		if err := sender.SendDump(dump); err != nil {
			return dump, err
		}
		dump++
		if dump%100 == 0 {
			sender.logger.Infof("sent %d dumps, %d heaps", dump, sender.numSent)
		}
		if stopRequest.Wait(period) {
			sender.logger.Info("stop requested")
			break
		}
	}
	sender.logger.Infof("sent %d dumps, %d heaps", dump, sender.numSent)
	return dump, nil
}

// Close sends end-of-stream markers to all substreams and closes connections
func (sender *Sender) Close() error {
	var firstErr error
	for stream, enc := range sender.encoders {
		datagrams, err := enc.EncodeStop()
		if err == nil {
			err = sender.write(stream, datagrams)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sender.closeConns()
	return firstErr
}

// NumSent returns the number of heaps sent
func (sender *Sender) NumSent() int {
	return sender.numSent
}

func (sender *Sender) send(stream int, items []*base.Item) error {
	datagrams, err := sender.encoders[stream].Encode(items)
	if err != nil {
		return fmt.Errorf("failed to encode heap for stream %d: %w", stream, err)
	}
	if werr := sender.write(stream, datagrams); werr != nil {
		return werr
	}
	sender.numSent++
	return nil
}

func (sender *Sender) write(stream int, datagrams [][]byte) error {
	for _, dg := range datagrams {
		if _, err := sender.conns[stream].Write(dg); err != nil {
			if errors.Is(err, syscall.ECONNREFUSED) {
				// nobody listening on unicast endpoint yet
				continue
			}
			return fmt.Errorf("failed to send to stream %d: %w", stream, err)
		}
	}
	return nil
}

func (sender *Sender) closeConns() {
	for _, conn := range sender.conns {
		conn.Close()
	}
}
