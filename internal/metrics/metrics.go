package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total number of inbound messages by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Total number of messages rejected by the rate limiter.",
		},
	)

	PrunedTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_pruned_turns_total",
			Help: "Total number of turns dropped by token-budget pruning.",
		},
	)

	OversizedTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_oversized_turns_total",
			Help: "Times a single turn alone exceeded the token budget and was sent anyway.",
		},
	)

	CompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_completion_duration_seconds",
			Help:    "Completion call duration in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	CompletionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_completion_failures_total",
			Help: "Total number of failed completion calls by failure kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		MessagesTotal,
		RateLimitedTotal,
		PrunedTurnsTotal,
		OversizedTurnsTotal,
		CompletionDuration,
		CompletionFailuresTotal,
	)
}
