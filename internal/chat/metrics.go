package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Chat completions by provider and status",
	}, []string{"provider", "status"})

	chatLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_latency_ms",
		Help:    "Provider completion latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})
)
