package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for config lifecycle and webhook processing.
var (
	ConfigOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_operations_total",
			Help: "Configuration lifecycle operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook events received, by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEventDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stripe_webhook_event_duration_seconds",
			Help:    "Duration of stripe webhook event processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_session_requests_total",
			Help: "Transaction session initialize/process requests by outcome",
		},
		[]string{"op", "outcome"},
	)
)

func Register() {
	prometheus.MustRegister(ConfigOperationsTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(WebhookEventDuration)
	prometheus.MustRegister(SessionRequestsTotal)
}
