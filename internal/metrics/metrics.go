package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"textbridge/internal/bridge"
)

// BridgeMetrics records outcomes and latency of bridge calls.
type BridgeMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewBridgeMetrics registers the bridge metrics on the provided registerer.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	if reg == nil {
		return &BridgeMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_requests_total",
		Help: "Bridge calls by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_request_duration_seconds",
		Help:    "Duration of bridge calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(requests, duration)
	return &BridgeMetrics{
		requests: requests,
		duration: duration,
	}
}

// Observe records one finished call.
func (m *BridgeMetrics) Observe(outcome string, duration time.Duration) {
	if m == nil || m.requests == nil || m.duration == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

type instrumented struct {
	next    bridge.Sender
	metrics *BridgeMetrics
}

// Instrument wraps next so every call is observed by m.
func Instrument(next bridge.Sender, m *BridgeMetrics) bridge.Sender {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Send(ctx context.Context, text string) (string, error) {
	start := time.Now()
	body, err := i.next.Send(ctx, text)
	i.metrics.Observe(bridge.OutcomeLabel(err), time.Since(start))
	return body, err
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
