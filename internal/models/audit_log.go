package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionPasswordReset = "PASSWORD_RESET"
	AuditActionAccountUnlock = "ACCOUNT_UNLOCK"
)

// AuditEntityUserAccount is the entity name for credential records.
const AuditEntityUserAccount = "user_account"

// AuditEntry is an append-only row in audit.audit_log.
type AuditEntry struct {
	ID         int64         `db:"audit_log_id"`
	ActorID    *int64        `db:"actor_user_id"`
	Action     string        `db:"action"`
	EntityName string        `db:"entity_name"`
	EntityID   string        `db:"entity_id"`
	OldValue   AuditSnapshot `db:"old_value"`
	NewValue   AuditSnapshot `db:"new_value"`
	CreatedAt  time.Time     `db:"created_at"`
}

// AuditSnapshot holds the before/after state of an audited entity
type AuditSnapshot map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (s *AuditSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*s = AuditSnapshot(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (s AuditSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(s))
}
