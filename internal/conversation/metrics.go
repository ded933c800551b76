package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_state_transitions_total",
		Help: "Conversation state transitions",
	}, []string{"from", "to"})

	metricTerminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_terminations_total",
		Help: "Conversations that reached the released-entrance phrase",
	})

	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_turn_failures_total",
		Help: "Turns aborted by capture, network or synthesis failures",
	}, []string{"kind"})

	metricStaleEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_stale_events_total",
		Help: "Collaborator results dropped because a reset happened meanwhile",
	})

	metricReplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiosk_reply_latency_ms",
		Help:    "Latency from transcript to assistant reply",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})
)
