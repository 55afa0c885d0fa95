package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aficare/medilink/internal/platform/db"
	"github.com/aficare/medilink/internal/platform/middleware"
)

const auditSchema = `
CREATE TABLE audit_log (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL DEFAULT '',
    user_roles  TEXT NOT NULL DEFAULT '',
    resource    TEXT NOT NULL DEFAULT '',
    medilink_id TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    path        TEXT NOT NULL DEFAULT '',
    method      TEXT NOT NULL DEFAULT '',
    request_id  TEXT NOT NULL DEFAULT '',
    status_code INTEGER NOT NULL DEFAULT 0,
    occurred_at DATETIME NOT NULL
);`

func setupStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec(auditSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewStore(conn)
}

func TestRecordAccessAndFind(t *testing.T) {
	store := setupStore(t)

	entries := []middleware.AuditEntry{
		{UserID: "dr-mensah", UserRoles: []string{"clinician"}, Resource: "patients",
			MediLinkID: "ML-TESTPAT1", Action: "read", Method: "GET",
			Path: "/api/v1/patients/ML-TESTPAT1", StatusCode: 200, Timestamp: time.Now().UTC()},
		{UserID: "dr-mensah", UserRoles: []string{"clinician"}, Resource: "consultations",
			MediLinkID: "ML-TESTPAT1", Action: "create", Method: "POST",
			Path: "/api/v1/consultations", StatusCode: 201, Timestamp: time.Now().UTC()},
		{UserID: "admin-1", UserRoles: []string{"admin"}, Resource: "patients",
			MediLinkID: "ML-OTHERPAT", Action: "delete", Method: "DELETE",
			Path: "/api/v1/patients/ML-OTHERPAT", StatusCode: 204, Timestamp: time.Now().UTC()},
	}
	for _, e := range entries {
		if err := store.RecordAccess(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	items, total, err := store.Find(context.Background(), Query{}, 20, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 entries, got total=%d len=%d", total, len(items))
	}

	items, total, err = store.Find(context.Background(), Query{MediLinkID: "ML-TESTPAT1"}, 20, 0)
	if err != nil {
		t.Fatalf("find by medilink: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 entries for patient, got %d", total)
	}
	for _, it := range items {
		if it.MediLinkID != "ML-TESTPAT1" {
			t.Errorf("unexpected medilink_id %s", it.MediLinkID)
		}
	}

	_, total, err = store.Find(context.Background(), Query{Action: "delete"}, 20, 0)
	if err != nil {
		t.Fatalf("find by action: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 delete entry, got %d", total)
	}
}

func TestFind_Since(t *testing.T) {
	store := setupStore(t)

	old := middleware.AuditEntry{UserID: "u", Action: "read", Timestamp: time.Now().Add(-48 * time.Hour).UTC()}
	recent := middleware.AuditEntry{UserID: "u", Action: "read", Timestamp: time.Now().UTC()}
	store.RecordAccess(old)
	store.RecordAccess(recent)

	_, total, err := store.Find(context.Background(), Query{Since: time.Now().Add(-time.Hour).UTC()}, 20, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 recent entry, got %d", total)
	}
}

func TestStoreImplementsRecorder(t *testing.T) {
	var _ middleware.AuditRecorder = (*Store)(nil)
}
