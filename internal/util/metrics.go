package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sessions_opened_total",
		Help: "Total number of sessions opened",
	})

	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sessions_closed_total",
		Help: "Total number of sessions moved to a terminal status",
	}, []string{"status"})

	BatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_batches_created_total",
		Help: "Total number of kitchen batches created",
	})

	BatchesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_batches_rejected_total",
		Help: "Total number of rejected batch submissions",
	}, []string{"reason"})

	ItemTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_item_transitions_total",
		Help: "Total number of order item status transitions",
	}, []string{"status"})

	BillsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_bills_generated_total",
		Help: "Total number of bills generated",
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"method"})

	PaymentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_rejected_total",
		Help: "Total number of rejected payment attempts",
	}, []string{"reason"})

	BillsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_bills_paid_total",
		Help: "Total number of bills fully paid",
	})

	ShortCodeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_short_code_retries_total",
		Help: "Total number of short-code collision retries",
	}, []string{"scope"})

	NotifyPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_notify_publish_failures_total",
		Help: "Total number of failed event publishes (best-effort channel)",
	})

	BillGenerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_bill_generation_latency_seconds",
		Help:    "Latency of bill generation including aggregation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
