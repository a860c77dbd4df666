package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_imports_recorded_total",
		Help: "Total number of import records written",
	})

	ImportsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_imports_rejected_total",
		Help: "Total number of rejected import requests",
	}, []string{"reason"})

	ImportedQuantityTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_imported_quantity_total",
		Help: "Total units of stock consumed by imports",
	})

	ImportRecordLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_import_record_latency_seconds",
		Help:    "Latency of the atomic check, insert and decrement",
		Buckets: prometheus.DefBuckets,
	})

	ImportsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_imports_deleted_total",
		Help: "Total number of import records deleted",
	})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotent_replays_total",
		Help: "Total number of import requests answered from a stored receipt",
	})

	ExportWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_export_writes_total",
		Help: "Total number of export record writes",
	}, []string{"op"})

	DashboardRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_requests_total",
		Help: "Total number of dashboard computations by cache outcome",
	}, []string{"cache"})

	DashboardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_compute_latency_seconds",
		Help:    "Latency of dashboard aggregation",
		Buckets: prometheus.DefBuckets,
	})

	LedgerEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_consumed_total",
		Help: "Total number of ledger events handled by the worker",
	}, []string{"type"})

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
