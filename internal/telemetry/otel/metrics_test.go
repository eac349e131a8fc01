package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"siteauth/backend/internal/audit/domain"
)

func TestSecurityEventCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	sink, err := NewSecurityEventCounter(mp)
	if err != nil {
		t.Fatalf("NewSecurityEventCounter: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = sink.Write(ctx, domain.SecurityEvent{Name: domain.EventLoginFailure, Severity: domain.SeverityMedium})
	}
	_ = sink.Write(ctx, domain.SecurityEvent{Name: domain.EventRefreshReuse, Severity: domain.SeverityHigh})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != SecurityEventCounterName {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("data type = %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				ev, _ := dp.Attributes.Value(attribute.Key("event"))
				counts[ev.AsString()] += dp.Value
			}
		}
	}
	if counts["login_failure"] != 3 || counts["refresh_reuse"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
