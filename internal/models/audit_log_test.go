package models

import (
	"encoding/json"
	"testing"
)

func TestAuditSnapshot_ValueNil(t *testing.T) {
	var s AuditSnapshot

	v, err := s.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil value for nil snapshot, got %v", v)
	}
}

func TestAuditSnapshot_ValueRoundTripsThroughScan(t *testing.T) {
	s := AuditSnapshot{"password_changed": true}

	v, err := s.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, ok := v.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", v)
	}
	if string(raw) != `{"password_changed":true}` {
		t.Errorf("unexpected JSON: %s", raw)
	}

	var scanned AuditSnapshot
	if err := scanned.Scan(raw); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if scanned["password_changed"] != true {
		t.Errorf("expected password_changed=true, got %v", scanned["password_changed"])
	}
}

func TestAuditSnapshot_ScanRejectsNonBytes(t *testing.T) {
	var s AuditSnapshot
	if err := s.Scan(42); err != ErrBadRequest {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestHasPermission(t *testing.T) {
	perms := []ModulePermissions{
		{Module: "goat", Actions: []string{"read", "update"}},
		{Module: "user_account", Actions: []string{"read"}},
	}

	tests := []struct {
		module string
		action string
		want   bool
	}{
		{"goat", "read", true},
		{"goat", "update", true},
		{"goat", "delete", false},
		{"user_account", "update", false},
		{"feed", "read", false},
	}

	for _, tt := range tests {
		if got := HasPermission(perms, tt.module, tt.action); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.module, tt.action, got, tt.want)
		}
	}

	if HasPermission(nil, "goat", "read") {
		t.Error("expected false for empty permission set")
	}
}

func TestSessionClaims_PermissionsSerializeAsModuleList(t *testing.T) {
	roleID := int64(2)
	claims := SessionClaims{
		AccountID:   7,
		Email:       "a@farm.test",
		RoleID:      &roleID,
		RoleName:    "Admin",
		Permissions: []ModulePermissions{{Module: "goat", Actions: []string{"read"}}},
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["user_account_id"] != float64(7) {
		t.Errorf("expected user_account_id 7, got %v", decoded["user_account_id"])
	}
	if decoded["role_name"] != "Admin" {
		t.Errorf("expected role_name Admin, got %v", decoded["role_name"])
	}
	perms, ok := decoded["permissions"].([]interface{})
	if !ok || len(perms) != 1 {
		t.Fatalf("expected one permission group, got %v", decoded["permissions"])
	}
}
