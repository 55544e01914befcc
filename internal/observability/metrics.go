package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts guestbook submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_submissions_total",
		Help: "Guestbook submissions by outcome",
	}, []string{"outcome"})

	// ModerationTransitionsTotal counts admin moderation transitions by resulting status.
	ModerationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_moderation_transitions_total",
		Help: "Moderation transitions by resulting status",
	}, []string{"status"})

	// StoreErrors counts persistent-store failures by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_store_errors_total",
		Help: "Persistent store failures by operation",
	}, []string{"operation"})

	// StoreQueryLatency records persistent-store latency by operation.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guestbook_store_query_latency_seconds",
		Help:    "Persistent store latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// RedisErrors counts Redis command failures.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_redis_errors_total",
		Help: "Redis command failures by command",
	}, []string{"command"})
)
