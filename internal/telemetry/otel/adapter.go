package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/audit/domain"
)

const instrumentationName = "siteauth/security"

// recordEmitter is the part of otellog.Logger the sink uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewSecurityEventLogSink returns an audit.Sink that exports events as OTel log
// records via provider. If provider is nil, events are discarded.
func NewSecurityEventLogSink(provider *sdklog.LoggerProvider) audit.Sink {
	if provider == nil {
		return audit.SinkFunc(func(context.Context, domain.SecurityEvent) error { return nil })
	}
	return NewSecurityEventLogSinkWithLogger(provider.Logger(instrumentationName))
}

// NewSecurityEventLogSinkWithLogger is NewSecurityEventLogSink over any record emitter.
func NewSecurityEventLogSinkWithLogger(l recordEmitter) audit.Sink {
	return &logSink{logger: l}
}

type logSink struct {
	logger recordEmitter
}

// Write converts ev to a log record: the event name is the body, severity maps
// to Info/Warn/Error, and metadata becomes attributes.
func (s *logSink) Write(ctx context.Context, ev domain.SecurityEvent) error {
	rec := otellog.Record{}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(string(ev.Name)))
	sev, text := severityOf(ev.Severity)
	rec.SetSeverity(sev)
	rec.SetSeverityText(text)

	rec.AddAttributes(
		otellog.String("event", string(ev.Name)),
		otellog.String("severity", string(ev.Severity)),
	)
	if ev.AccountID != "" {
		rec.AddAttributes(otellog.String("account_id", ev.AccountID))
	}
	if ev.ClientIP != "" {
		rec.AddAttributes(otellog.String("client_ip", ev.ClientIP))
	}
	for k, v := range ev.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

func severityOf(s domain.Severity) (otellog.Severity, string) {
	switch s {
	case domain.SeverityHigh:
		return otellog.SeverityError, "ERROR"
	case domain.SeverityMedium:
		return otellog.SeverityWarn, "WARN"
	default:
		return otellog.SeverityInfo, "INFO"
	}
}
