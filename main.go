package main

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/cmd"
)

// version is set by -ldflags "-X main.version=..."
var version string

func main() {
	if version == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			version = info.Main.Version
		}
	}
	logger.Infof("version: %s", version)
	logger.Infof("GOMAXPROCS: %d", runtime.GOMAXPROCS(0))

	prometheus.MustRegister(newInfoMetric())

	cmd.Execute()
}

func newInfoMetric() prometheus.Collector {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cbfingest_info",
		Help: "cbf-ingest application information",
	}, []string{"version", "goversion"})
	gauge.WithLabelValues(version, runtime.Version()).Set(1)
	return gauge
}
