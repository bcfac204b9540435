package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thebtf/hcplog/internal/session"

// Metrics records backend round trips made by the controller.
type Metrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("hcplog.session.requests",
		metric.WithDescription("Backend requests issued by the session controller"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("hcplog.session.failures",
		metric.WithDescription("Backend requests that ended in the failed status"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("hcplog.session.latency",
		metric.WithDescription("Backend round trip time"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, failures: failures, latency: latency}, nil
}

// defaultMetrics uses the global meter provider, which is a no-op unless one is installed.
func defaultMetrics() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider().Meter(meterName))
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) record(ctx context.Context, op string, took time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.requests.Add(ctx, 1, attrs)
	if failed {
		m.failures.Add(ctx, 1, attrs)
	}
	m.latency.Record(ctx, float64(took.Microseconds())/1000, attrs)
}
