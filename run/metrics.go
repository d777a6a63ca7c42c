package run

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	consumedFramesVec         *prometheus.CounterVec
	consumedCompleteCounter   prometheus.Counter
	consumedIncompleteCounter prometheus.Counter
	capturedFramesCounter     prometheus.Counter
	lastFrameTimeGauge        prometheus.Gauge
)

func init() {
	opts := prometheus.CounterOpts{}
	opts.Name = "cbfingest_consumed_frames_total"
	opts.Help = "Numbers of frames taken by consumer"
	consumedFramesVec = prometheus.NewCounterVec(opts, []string{"status"})
	prometheus.MustRegister(consumedFramesVec)

	consumedCompleteCounter = consumedFramesVec.WithLabelValues("complete")
	consumedIncompleteCounter = consumedFramesVec.WithLabelValues("incomplete")

	capturedFramesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cbfingest_captured_frames_total",
		Help: "Numbers of frames recorded into capture file",
	})
	prometheus.MustRegister(capturedFramesCounter)

	lastFrameTimeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cbfingest_last_frame_time_seconds",
		Help: "Wall-clock time of the last frame taken by consumer, as unix time",
	})
	prometheus.MustRegister(lastFrameTimeGauge)
}
