package gridserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datatable_requests_total",
			Help: "Total number of grid requests by payload format and outcome",
		},
		[]string{"format", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datatable_request_duration_seconds",
			Help:    "Grid request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	rowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datatable_page_rows",
			Help:    "Number of rows in returned grid pages",
			Buckets: []float64{0, 10, 25, 50, 100, 250, 1000},
		},
	)
)

// Request outcomes used as the status label.
const (
	statusOK         = "ok"
	statusBadRequest = "bad_request"
	statusError      = "error"
)
