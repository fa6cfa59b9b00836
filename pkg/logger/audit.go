package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is a security-relevant event mirrored to the structured log
type AuditEvent struct {
	EventType     string
	AccountID     string
	Identifier    string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit events to slog with a stable attribute set
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginAttempt logs a sign-in attempt. The identifier is masked.
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("user_account_id", event.AccountID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAccountAction logs a change made to an account, such as a password
// reset or an unlock.
func (al *AuditLogger) LogAccountAction(eventType, accountID, actorID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("user_account_id", accountID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if actorID != "" {
		attrs = append(attrs, slog.String("actor_user_id", actorID))
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
