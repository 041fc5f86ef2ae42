package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	CheckoutPreferencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_preferences_total",
		Help: "Total number of checkout preferences created",
	})

	PaymentsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_approved_total",
		Help: "Total number of payments reaching approved",
	})

	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Total number of payment webhooks received",
	}, []string{"outcome"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of payment gateway API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of order notifications delivered",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of order notifications that failed to deliver",
	})

	SnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_total",
		Help: "Total number of durable snapshots pushed",
	})

	SnapshotsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_failed_total",
		Help: "Total number of failed durable snapshots",
	})

	WorkerTasksDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_tasks_dropped_total",
		Help: "Total number of background tasks dropped after retries",
	}, []string{"task"})

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
