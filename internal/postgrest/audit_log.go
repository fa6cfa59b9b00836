package postgrest

import (
	"context"

	"github.com/BradenHooton/farmgate/internal/models"
)

type auditRow struct {
	ActorID    *int64                 `json:"actor_user_id"`
	Action     string                 `json:"action"`
	EntityName string                 `json:"entity_name"`
	EntityID   string                 `json:"entity_id"`
	OldValue   map[string]interface{} `json:"old_value"`
	NewValue   map[string]interface{} `json:"new_value"`
}

// AuditLogStore appends rows to audit.audit_log
type AuditLogStore struct {
	client *Client
}

func NewAuditLogStore(client *Client) *AuditLogStore {
	return &AuditLogStore{client: client}
}

func (s *AuditLogStore) Create(ctx context.Context, entry *models.AuditEntry) error {
	row := auditRow{
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityName: entry.EntityName,
		EntityID:   entry.EntityID,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
	}

	var created []struct {
		ID        int64      `json:"audit_log_id"`
		CreatedAt *timestamp `json:"created_at"`
	}
	if err := s.client.Create(ctx, "audit", "audit_log", row, &created); err != nil {
		return err
	}
	if len(created) > 0 {
		entry.ID = created[0].ID
		entry.CreatedAt = created[0].CreatedAt.value()
	}
	return nil
}
