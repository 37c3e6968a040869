package mockbank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that no route handled.
const unmatchedRoute = "unmatched"

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockbank_http_requests_total",
			Help: "The total number of HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mockbank_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockbank_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	pageItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mockbank_page_items",
			Help:    "Number of transactions returned per page",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"mode"},
	)

	faultsInjected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mockbank_faults_injected_total",
			Help: "Requests answered with an injected 503",
		},
	)
)
