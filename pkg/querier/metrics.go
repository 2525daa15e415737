package querier

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

type metrics struct {
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	batches       prometheus.Counter
	rows          prometheus.Counter
	deliveryFails prometheus.Counter
	inflight      prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, inflight *atomic.Int64) *metrics {
	return &metrics{
		queries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "queries_total",
			Help:      "Total number of queries by status code.",
		}, []string{"status"}),
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "query_duration_seconds",
			Help:      "Time taken to run a query from prepare to merged result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		batches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "batches_total",
			Help:      "Total number of batches executed.",
		}),
		rows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "rows_returned_total",
			Help:      "Total number of rows returned by merged results.",
		}),
		deliveryFails: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "delivery_failures_total",
			Help:      "Total number of results that could not be delivered.",
		}),
		inflight: promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "qe",
			Subsystem: "querier",
			Name:      "inflight_queries",
			Help:      "Number of queries currently running.",
		}, func() float64 { return float64(inflight.Load()) }),
	}
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
