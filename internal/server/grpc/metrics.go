package grpcserver

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds the server's prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	watchers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealplanner",
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC calls by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mealplanner",
			Name:      "grpc_request_duration_seconds",
			Help:      "Latency of unary gRPC calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mealplanner",
			Name:      "active_watchers",
			Help:      "Open collection watch streams.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.watchers)
	}
	return m
}

// Unary records count and latency of unary calls.
func (m *Metrics) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		m.duration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}

// Stream counts streams and tracks how many are open.
func (m *Metrics) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		m.watchers.Inc()
		defer m.watchers.Dec()
		err := next(srv, ss)
		m.requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return err
	}
}
