package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LoanQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_quotes_total",
			Help: "Loan quotes computed, by outcome",
		},
		[]string{"outcome"},
	)

	BranchLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "branch_lookups_total",
			Help: "Nearest-branch lookups, by outcome",
		},
		[]string{"outcome"},
	)

	BranchDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "branch_distance_km",
			Help:    "Distance to the nearest branch returned",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25},
		},
	)

	PlacesUpstream = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_upstream_requests_total",
			Help: "Requests sent to the places API, by result",
		},
		[]string{"result"},
	)

	PlacesCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_cache_total",
			Help: "Places cache lookups, by result",
		},
		[]string{"result"},
	)

	BatchJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batch_jobs",
			Help: "Batch nearest-branch jobs by status",
		},
		[]string{"status"},
	)
)
