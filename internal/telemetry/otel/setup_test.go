package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_NoEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "   "} {
		p, err := Setup(context.Background(), Config{Endpoint: endpoint, ServiceName: "siteauth"})
		if err != nil {
			t.Fatalf("Setup(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("Setup(%q) left a provider nil: %+v", endpoint, p)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name       string
		endpoint   string
		wantTarget string
		wantTLS    bool
		wantErr    bool
	}{
		{"bare host port", "localhost:4317", "localhost:4317", false, false},
		{"http url", "http://collector:4317", "collector:4317", false, false},
		{"https url", "https://collector:4317", "collector:4317", true, false},
		{"path dropped", "https://collector:4317/v1/traces", "collector:4317", true, false},
		{"surrounding space", "  collector:4317  ", "collector:4317", false, false},
		{"missing host", "http://", "", false, true},
		{"malformed", "http://[invalid", "", false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, tls, err := parseEndpoint(tc.endpoint)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseEndpoint(%q) should fail", tc.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEndpoint(%q): %v", tc.endpoint, err)
			}
			if target != tc.wantTarget || tls != tc.wantTLS {
				t.Errorf("parseEndpoint(%q) = %q, %v; want %q, %v", tc.endpoint, target, tls, tc.wantTarget, tc.wantTLS)
			}
		})
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters connect lazily, so no collector is needed.
	p, err := Setup(ctx, Config{Endpoint: "localhost:4317", ServiceName: "siteauth", Environment: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(p.closers) != 3 {
		t.Errorf("closers = %d, want 3", len(p.closers))
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Shutdown(shutdownCtx)
	if len(p.closers) != 0 {
		t.Error("Shutdown should release closers")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestSetGlobal(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global tracer provider not set")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global meter provider not set")
	}

	var nilProviders *Providers
	if err := nilProviders.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}
