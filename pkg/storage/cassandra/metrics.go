package cassandra

import (
	"context"
	"strings"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requestDuration *prometheus.HistogramVec
	rowsScanned     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qe",
			Subsystem: "cassandra",
			Name:      "request_duration_seconds",
			Help:      "Time spent doing Cassandra requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation", "status_code"}),
		rowsScanned: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "qe",
			Subsystem: "cassandra",
			Name:      "rows_scanned_total",
			Help:      "Rows read from Cassandra by table.",
		}, []string{"table"}),
	}
}

// observer records the duration of every query the session runs.
type observer struct {
	m *metrics
}

func (o observer) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	status := "success"
	if q.Err != nil {
		status = "failure"
	}
	o.m.requestDuration.WithLabelValues(operation(q.Statement), status).Observe(q.End.Sub(q.Start).Seconds())
}

func operation(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexAny(stmt, " \n\t"); i > 0 {
		return strings.ToUpper(stmt[:i])
	}
	return "UNKNOWN"
}
