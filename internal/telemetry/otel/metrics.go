package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/audit/domain"
)

// SecurityEventCounterName is the counter incremented once per security event.
const SecurityEventCounterName = "security_events_total"

// NewSecurityEventCounter returns an audit.Sink that counts events by name and severity.
func NewSecurityEventCounter(mp metric.MeterProvider) (audit.Sink, error) {
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		SecurityEventCounterName,
		metric.WithDescription("Security events recorded, by event and severity."),
	)
	if err != nil {
		return nil, fmt.Errorf("security event counter: %w", err)
	}
	return audit.SinkFunc(func(ctx context.Context, ev domain.SecurityEvent) error {
		counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event", string(ev.Name)),
			attribute.String("severity", string(ev.Severity)),
		))
		return nil
	}), nil
}
