package audit

import (
	"context"

	"github.com/rs/zerolog"

	"siteauth/backend/internal/audit/domain"
)

// ZerologSink writes events as structured log lines. Severity maps to level:
// low → info, medium → warn, high → error.
type ZerologSink struct {
	log zerolog.Logger
}

// NewZerologSink returns a sink tagged component=security.
func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: log.With().Str("component", "security").Logger()}
}

func (s *ZerologSink) Write(_ context.Context, ev domain.SecurityEvent) error {
	var e *zerolog.Event
	switch ev.Severity {
	case domain.SeverityHigh:
		e = s.log.Error()
	case domain.SeverityMedium:
		e = s.log.Warn()
	default:
		e = s.log.Info()
	}
	e = e.Str("event", string(ev.Name)).
		Str("severity", string(ev.Severity)).
		Str("client_ip", ev.ClientIP).
		Time("at", ev.Timestamp)
	if ev.AccountID != "" {
		e = e.Str("account_id", ev.AccountID)
	}
	if len(ev.Metadata) > 0 {
		e = e.Interface("metadata", ev.Metadata)
	}
	e.Msg("security event")
	return nil
}
