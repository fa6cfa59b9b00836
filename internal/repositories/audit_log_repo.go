package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository writes to audit.audit_log. Rows are never updated.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	stmt, args, err := psql.Insert("audit.audit_log").
		Columns("actor_user_id", "action", "entity_name", "entity_id", "old_value", "new_value").
		Values(entry.ActorID, entry.Action, entry.EntityName, entry.EntityID, entry.OldValue, entry.NewValue).
		Suffix("RETURNING audit_log_id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert: %w", err)
	}

	var createdAt *time.Time
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&entry.ID, &createdAt); err != nil {
		return fmt.Errorf("failed to create audit log: %w", database.MapPostgresError(err))
	}
	if createdAt != nil {
		entry.CreatedAt = *createdAt
	}
	return nil
}
