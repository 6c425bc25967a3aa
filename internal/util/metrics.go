package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_queries_total",
		Help: "Total number of assistant queries handled",
	}, []string{"role"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed successfully",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderRequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_requests_created_total",
		Help: "Total number of dealer order requests created",
	})

	OrderProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_proposals_total",
		Help: "Pending order proposal outcomes",
	}, []string{"outcome"})

	UnsafeSQLRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unsafe_sql_rejected_total",
		Help: "Generated SQL statements rejected by the safety guard",
	})

	CompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "completion_request_duration_seconds",
		Help:    "Latency of completion provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	EmbeddingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "embedding_request_duration_seconds",
		Help:    "Latency of embedding provider calls",
		Buckets: prometheus.DefBuckets,
	})

	VectorRowsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vector_rows_scanned_total",
		Help: "Vector rows scanned during similarity search",
	})

	VectorRowsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vector_rows_ingested_total",
		Help: "Vector rows inserted or updated by ingestion workers",
	}, []string{"table_join"})

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
