// Package metrics holds the Prometheus collectors shared by the api and worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classattend",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "classattend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classattend",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	}, []string{"limiter"})

	AttendanceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classattend",
		Name:      "attendance_writes_total",
		Help:      "Daily record writes by operation.",
	}, []string{"op"})

	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "classattend",
		Name:      "report_duration_seconds",
		Help:      "Time spent aggregating and projecting a report.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
	}, []string{"kind"})

	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classattend",
		Name:      "reminders_total",
		Help:      "Low-attendance reminders by stage and result.",
	}, []string{"stage", "result"})
)
