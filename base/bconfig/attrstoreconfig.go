package bconfig

import (
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
)

// AttrStoreConfig provides an interface for the configuration of state stores
type AttrStoreConfig interface {
	BaseConfig

	// NewStateStore creates a state store where metadata are published under "<prefix>_<name>"
	NewStateStore(parentLogger logger.Logger, prefix string) (base.StateStore, error)
}

// AttrStoreConfigHolder holds AttrStoreConfig
type AttrStoreConfigHolder = ConfigHolder[AttrStoreConfig]

// AttrStoreConfigCreatorTable defines the table of constructors for AttrStoreConfig implementations
type AttrStoreConfigCreatorTable = ConfigCreatorTable[AttrStoreConfig]
