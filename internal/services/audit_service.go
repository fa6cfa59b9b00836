package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/BradenHooton/farmgate/internal/metrics"
	"github.com/BradenHooton/farmgate/internal/models"
	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
)

// AuditRecorder is the non-propagating audit write used by the workflows
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditEntry)
}

// AuditService handles audit logging with dual-write pattern (slog + store).
// Failures are logged and counted, never returned.
type AuditService struct {
	repo        AuditLogRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewAuditService(repo AuditLogRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger, m *metrics.Metrics) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
		metrics:     m,
	}
}

// Record writes entry to the structured log and then to the audit table
func (s *AuditService) Record(ctx context.Context, entry *models.AuditEntry) {
	if entry == nil {
		return
	}

	actor := ""
	if entry.ActorID != nil {
		actor = strconv.FormatInt(*entry.ActorID, 10)
	}
	s.auditLogger.LogAccountAction(entry.Action, entry.EntityID, actor, snapshotMetadata(entry))

	// The primary operation has already committed; a cancelled request
	// must not drop its audit row.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", entry.Action),
			slog.String("entity_name", entry.EntityName),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err),
		)
		s.metrics.SideEffectFailed("audit")
	}
}

func snapshotMetadata(entry *models.AuditEntry) map[string]string {
	meta := map[string]string{"entity_name": entry.EntityName}
	if entry.OldValue != nil {
		if b, err := json.Marshal(entry.OldValue); err == nil {
			meta["old_value"] = string(b)
		}
	}
	if entry.NewValue != nil {
		if b, err := json.Marshal(entry.NewValue); err == nil {
			meta["new_value"] = string(b)
		}
	}
	return meta
}
