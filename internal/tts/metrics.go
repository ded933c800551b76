package tts

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "tts_synthesis_total",
        Help: "Total TTS synthesis requests by provider and status",
    }, []string{"provider", "status"})

    ttsTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "tts_total_duration_ms",
        Help:    "Total TTS synthesis time in milliseconds",
        Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
    })

    ttsProviderLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
        Name:    "tts_provider_latency_ms",
        Help:    "Latency of a single provider HTTP call (first byte)",
        Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
    }, []string{"provider"})

    ttsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "tts_cache_total",
        Help: "TTS cache lookups by result",
    }, []string{"result"})
)
