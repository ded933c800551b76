package events

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
    Name: "events_dropped_total",
    Help: "Events not delivered because a subscriber buffer was full",
})
