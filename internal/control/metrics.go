package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var grpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "control_grpc_requests_total",
	Help: "Control plane gRPC calls by method and status code",
}, []string{"method", "code"})
