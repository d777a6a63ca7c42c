package udpsource

import (
	"fmt"
	"net"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/util"
	"golang.org/x/net/ipv4"
)

// FactoryParams defines the parameters of Factory. Zero values mean defaults.
type FactoryParams struct {
	Interface      string
	PacketSize     int
	RecvBufferSize int
}

// Factory opens UDP subscriptions to heap streams
//
// Each subscription has its own socket and network goroutine, so the same endpoint can be subscribed more than once.
type Factory struct {
	logger         logger.Logger
	iface          *net.Interface // nil for system default
	packetSize     int
	recvBufferSize int
	metricCreator  promreg.MetricCreator
}

// NewFactory creates a Factory
func NewFactory(parentLogger logger.Logger, params FactoryParams, metricCreator promreg.MetricCreator) (*Factory, error) {
	factory := &Factory{
		logger:         parentLogger.WithField(defs.LabelComponent, "UDPSourceFactory"),
		packetSize:     params.PacketSize,
		recvBufferSize: params.RecvBufferSize,
		metricCreator:  metricCreator.AddOrGetPrefix("source_", nil, nil),
	}
	if params.Interface != "" {
		iface, err := net.InterfaceByName(params.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", params.Interface, err)
		}
		factory.iface = iface
	}
	if factory.packetSize == 0 {
		factory.packetSize = defs.SourcePacketSize
	}
	if factory.recvBufferSize == 0 {
		factory.recvBufferSize = defs.SourceRecvBufferSize
	}
	return factory, nil
}

// OpenSource binds a socket to the endpoint and starts receiving heaps
//
// Multicast groups are joined on the configured interface. Bootstrap subscriptions, which have no pooled heap
// buffers, get the smallest receive buffer.
func (factory *Factory) OpenSource(parentLogger logger.Logger, endpoint base.Endpoint, sizing base.SourceSizing) (base.HeapSource, error) {
	slogger := parentLogger.WithField(defs.LabelComponent, "UDPSource")

	conn, err := util.ListenReusableUDP(endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}
	if endpoint.IsMulticast() {
		pconn := ipv4.NewPacketConn(conn)
		if jerr := pconn.JoinGroup(factory.iface, &net.UDPAddr{IP: net.ParseIP(endpoint.Host)}); jerr != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to join multicast group %s: %w", endpoint.Host, jerr)
		}
	}

	bufferSize := defs.SourceMinRecvBufferSize
	if sizing.HeapBytes > 0 {
		bufferSize = factory.recvBufferSize
	}
	granted, berr := util.TrySetUDPReadBuffer(conn, bufferSize, defs.SourceMinRecvBufferSize)
	switch {
	case berr != nil:
		slogger.Warnf("failed to set receive buffer: %s", berr.Error())
	case granted < bufferSize:
		slogger.Warnf("receive buffer limited to %s, requested %s", datasize.ByteSize(granted).HR(), datasize.ByteSize(bufferSize).HR())
	default:
		slogger.Debugf("receive buffer: %s", datasize.ByteSize(granted).HR())
	}

	metrics := newSourceMetrics(factory.metricCreator, endpoint)
	src := newUDPSource(slogger, conn, sizing, factory.packetSize, metrics)
	src.launch()
	return src, nil
}
