// Package audit writes security-relevant owner actions to the structured log.
package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess     EventType = "login_success"
	EventLoginFailure     EventType = "login_failure"
	EventAuthFailure      EventType = "auth_failure"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
	EventOwnerCreate      EventType = "owner_create"
	EventSessionStart     EventType = "session_start"
	EventSessionEnd       EventType = "session_end"
	EventManualAdjustment EventType = "manual_adjustment"
	EventExport           EventType = "export"
)

type Event struct {
	Type      EventType
	OwnerID   string
	SessionID string
	IP        string
	UserAgent string
	Details   map[string]any
}

func Log(ctx context.Context, event Event) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	builder := logger.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now())

	if event.OwnerID != "" {
		builder = builder.Str("owner_id", event.OwnerID)
	}
	if event.SessionID != "" {
		builder = builder.Str("session_id", event.SessionID)
	}
	if event.IP != "" {
		builder = builder.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		builder = builder.Str("user_agent", event.UserAgent)
	}
	l := builder.Logger()

	logEvent := l.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills the client address and user agent from r. The address
// is taken from RemoteAddr, which the RealIP middleware has already resolved.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
