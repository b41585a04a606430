package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsCreated      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "calls_created_total", Help: "Total calls created"})
	CallsAssigned     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "calls_assigned_total", Help: "Total successful call assignments"})
	AssignConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "assign_conflicts_total", Help: "Assignment attempts rejected"})
	CallsCanceled     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "calls_canceled_total", Help: "Total calls canceled"})
	RecurrenceSpawned = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "recurrence_spawned_total", Help: "Successor calls spawned from recurrence rules"})

	ActiveDrivers  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "dispatch", Name: "active_drivers", Help: "Drivers with a fresh heartbeat"})
	SweepEvictions = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "sweep_evictions_total", Help: "Drivers evicted by the heartbeat sweep"})

	PushSent   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "push_sent_total", Help: "Push notifications accepted by the provider"})
	PushFailed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "push_failed_total", Help: "Push notifications that failed to send"})

	TravelTimeLookups   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "travel_time_lookups_total", Help: "Travel time provider lookups"})
	TravelTimeFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "travel_time_fallbacks_total", Help: "Lookups that fell back to the default travel time"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
