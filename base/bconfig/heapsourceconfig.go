package bconfig

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/ska-sa/cbf-ingest/base"
)

// HeapSourceConfig provides an interface for the configuration of heap transports
type HeapSourceConfig interface {
	BaseConfig

	NewSourceFactory(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.HeapSourceFactory, error)
}

// HeapSourceConfigHolder holds HeapSourceConfig
type HeapSourceConfigHolder = ConfigHolder[HeapSourceConfig]

// HeapSourceConfigCreatorTable defines the table of constructors for HeapSourceConfig implementations
type HeapSourceConfigCreatorTable = ConfigCreatorTable[HeapSourceConfig]
