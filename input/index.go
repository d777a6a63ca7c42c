// Package input registers the list of all heap source implementations
package input

import (
	"github.com/ska-sa/cbf-ingest/base/bconfig"
	"github.com/ska-sa/cbf-ingest/input/udpsource"
)

func init() {
	bconfig.RegisterConfigConstructors(bconfig.HeapSourceConfigCreatorTable{
		"udp": func() bconfig.HeapSourceConfig { return &udpsource.Config{} },
	})
}

// Register registers all source config types
func Register() {
	// trigger init()
}
