package explorer

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeError       = "error"
	outcomeBreakerOpen = "breaker_open"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utxocore",
			Subsystem: "explorer",
			Name:      "requests_total",
			Help:      "Explorer and price feed requests by outcome.",
		},
		[]string{"host", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "utxocore",
			Subsystem: "explorer",
			Name:      "request_duration_seconds",
			Help:      "Latency of explorer and price feed requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host"},
	)
)

// RegisterMetrics registers the request collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		requestsTotal, requestDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
