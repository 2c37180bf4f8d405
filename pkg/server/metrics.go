package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netcas_splitter_http_dispatch_duration_seconds",
			Help:    "Time spent answering dispatch requests",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	dispatchRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcas_splitter_http_rate_limited_total",
			Help: "Number of dispatch requests rejected due to rate limiting",
		},
	)
)
