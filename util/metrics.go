package util

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/defs"
)

const metricsIndexPage = `<html>
<head><title>cbf-ingest</title></head>
<body>
<h1>cbf-ingest</h1>
<ul>
<li><a href='/metrics'>/metrics</a></li>
<li><a href='/debug/pprof/'>/debug/pprof/</a></li>
</ul>
</body>
</html>
`

// NewMetricsHandler creates a HTTP handler serving Prometheus metrics from the default registry and pprof
func NewMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(metricsIndexPage))
	})
	return mux
}

// LaunchMetricsListener starts a HTTP server for Prometheus metrics
//
// The address is bound before returning, so that the actual address is known when the port is 0. Failure to listen is
// fatal.
func LaunchMetricsListener(address string) *http.Server {
	mlogger := logger.WithField(defs.LabelComponent, "MetricsListener")
	listener, err := net.Listen("tcp", address)
	if err != nil {
		mlogger.Fatalf("failed to listen on %s: %s", address, err.Error())
	}
	server := &http.Server{
		Addr:    listener.Addr().String(),
		Handler: NewMetricsHandler(),
	}
	go func() {
		mlogger.Infof("listening on %s for metrics...", server.Addr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mlogger.Error("Prometheus listener error: ", err)
		}
	}()
	return server
}

// SumMetricValues sums up the values of all counters and gauges in a Collector such as CounterVec
func SumMetricValues(c prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric)
	go func() {
		c.Collect(metricChan)
		close(metricChan)
	}()

	sum := 0.0
	for m := range metricChan {
		pb := &dto.Metric{}
		if err := m.Write(pb); err != nil {
			logger.Errorf("failed to read metric '%s': %s", m.Desc(), err.Error())
			continue
		}
		sum += pb.GetCounter().GetValue() + pb.GetGauge().GetValue()
	}
	return sum
}
