package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"volumeScope/internal/stream"
)

const namespace = "volumescope"

// Drop reasons used on the swaps_dropped counter.
const (
	dropRemoved   = "removed"
	dropMetadata  = "metadata"
	dropUntracked = "untracked"
)

type metrics struct {
	logs            prometheus.Counter
	unrecognized    prometheus.Counter
	decoded         prometheus.Counter
	decodeFailures  prometheus.Counter
	swapsRecorded   prometheus.Counter
	swapsDropped    *prometheus.CounterVec
	reconnects      prometheus.Counter
	connectionState prometheus.Gauge
	trackedPools    prometheus.Gauge
	backfilledLogs  prometheus.Counter
}

// newMetrics registers on reg. A nil reg yields working, unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		logs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_received_total",
			Help:      "The total number of logs received from the stream, backfill or replay",
		}),
		unrecognized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_unrecognized_total",
			Help:      "The total number of logs whose topic0 is not a known Swap event",
		}),
		decoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_decoded_total",
			Help:      "The total number of Swap logs decoded",
		}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_decode_failures_total",
			Help:      "The total number of Swap logs that failed to decode",
		}),
		swapsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_recorded_total",
			Help:      "The total number of swaps added to a tracked pool",
		}),
		swapsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_dropped_total",
			Help:      "The total number of swaps dropped before aggregation",
		}, []string{"reason"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "The total number of scheduled stream reconnects",
		}),
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_state",
			Help:      "Stream state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 failed",
		}),
		trackedPools: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_pools",
			Help:      "The number of common-token pools being aggregated",
		}),
		backfilledLogs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_logs_total",
			Help:      "The total number of logs delivered by backfill",
		}),
	}
}

func (m *metrics) observeState(status stream.Status) {
	m.connectionState.Set(float64(status.State))
	if status.State == stream.StateReconnecting {
		m.reconnects.Inc()
	}
}
