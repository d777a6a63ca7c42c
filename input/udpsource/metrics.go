package udpsource

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/ska-sa/cbf-ingest/base"
)

type sourceMetrics struct {
	openSources           promext.RWGauge
	packetsTotal          promext.RWCounter
	heapsTotal            promext.RWCounter
	badPacketsTotal       promext.RWCounter
	badHeapsTotal         promext.RWCounter
	evictedHeapsTotal     promext.RWCounter
	droppedFragmentsTotal promext.RWCounter
}

// newSourceMetrics creates or reuses the metrics of an endpoint, shared by all its subscriptions
func newSourceMetrics(metricCreator promreg.MetricCreator, endpoint base.Endpoint) *sourceMetrics {
	endpointMetricCreator := metricCreator.AddOrGetPrefix("", []string{"endpoint"}, []string{endpoint.String()})
	return &sourceMetrics{
		openSources:           endpointMetricCreator.AddOrGetGauge("open", "Numbers of open subscriptions", nil, nil),
		packetsTotal:          endpointMetricCreator.AddOrGetCounter("packets_total", "Numbers of packets accepted for heap assembly", nil, nil),
		heapsTotal:            endpointMetricCreator.AddOrGetCounter("heaps_total", "Numbers of heaps assembled", nil, nil),
		badPacketsTotal:       endpointMetricCreator.AddOrGetCounter("bad_packets_total", "Numbers of undecodable packets", nil, nil),
		badHeapsTotal:         endpointMetricCreator.AddOrGetCounter("bad_heaps_total", "Numbers of assembled heaps failing to decode", nil, nil),
		evictedHeapsTotal:     endpointMetricCreator.AddOrGetCounter("evicted_heaps_total", "Numbers of incomplete heaps evicted for newer ones", nil, nil),
		droppedFragmentsTotal: endpointMetricCreator.AddOrGetCounter("dropped_fragments_total", "Numbers of duplicate, inconsistent or oversized packets dropped", nil, nil),
	}
}
