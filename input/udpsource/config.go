// Package udpsource provides heap sources receiving the heapproto wire format over UDP, unicast or multicast
package udpsource

import (
	"fmt"
	"net"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/base/bconfig"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/heapproto"
)

// Config provides configuration for UDP heap sources
type Config struct {
	bconfig.Header `yaml:",inline"`
	Interface      string            `yaml:"interface"`      // network interface to join multicast groups on, e.g. "eth0". Empty for system default.
	PacketSize     int               `yaml:"packetSize"`     // max size of datagrams, 0 for default
	RecvBufferSize datasize.ByteSize `yaml:"recvBufferSize"` // socket receive buffer of each full-rate subscription, e.g. "64MB". 0 for default.
}

// NewSourceFactory creates a Factory from the configuration
func (cfg *Config) NewSourceFactory(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.HeapSourceFactory, error) {
	if err := cfg.VerifyConfig(); err != nil {
		return nil, err
	}
	return NewFactory(parentLogger, FactoryParams{
		Interface:      cfg.Interface,
		PacketSize:     cfg.PacketSize,
		RecvBufferSize: int(cfg.RecvBufferSize.Bytes()),
	}, metricCreator)
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.Interface != "" {
		if _, err := net.InterfaceByName(cfg.Interface); err != nil {
			return fmt.Errorf(".interface: %w", err)
		}
	}
	if cfg.PacketSize != 0 && cfg.PacketSize <= heapproto.PacketOverhead {
		return fmt.Errorf(".packetSize is too small: %d", cfg.PacketSize)
	}
	if cfg.RecvBufferSize != 0 && cfg.RecvBufferSize.Bytes() < uint64(defs.SourceMinRecvBufferSize) {
		return fmt.Errorf(".recvBufferSize is too small: %s", cfg.RecvBufferSize.HR())
	}
	return nil
}
