package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_started_total",
			Help: "Total chat sessions started",
		},
	)

	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Total messages appended",
		},
		[]string{"sender_type"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_transitions_total",
			Help: "Session state machine outcomes",
		},
		[]string{"event", "result"}, // result: "ok", "rejected", "conflict"
	)

	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_swept_total",
			Help: "Idle sessions archived by the sweeper",
		},
	)

	// Delivery metrics
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_published_total",
			Help: "Notifications handed to the broker",
		},
		[]string{"kind"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_failed_total",
			Help: "Notifications the broker rejected (swallowed)",
		},
		[]string{"kind"},
	)

	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notifications_delivered_total",
			Help: "Refetch signals queued to local subscribers",
		},
	)

	NotificationsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notifications_coalesced_total",
			Help: "Signals dropped because the subscriber already had one pending",
		},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_subscriptions",
			Help: "Open delivery subscriptions on this instance",
		},
	)

	// AI drafting
	DraftDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_draft_duration_seconds",
			Help:    "AI draft generation latency",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"},
	)
)
