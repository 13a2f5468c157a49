package store

import (
	"testing"

	"github.com/bunkhouselabs/bunkhouse/internal/database"
)

func setupAuditTestDB(t *testing.T) *AuditStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditStore(db)
}

func TestAuditRecordAndListRecent(t *testing.T) {
	as := setupAuditTestDB(t)

	if err := as.Record("alice@example.com", "login_success", "logged in with role customer", "10.0.0.1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := as.Record("bob@example.com", "login_failed", "failed login attempt", "10.0.0.2"); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, err := as.ListRecent(10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.Action != "login_success" && e.Action != "login_failed" {
			t.Errorf("unexpected action %q", e.Action)
		}
	}
}

func TestAuditListRecentLimit(t *testing.T) {
	as := setupAuditTestDB(t)

	for i := 0; i < 5; i++ {
		if err := as.Record("alice@example.com", "logout", "session ended", ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := as.ListRecent(3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("len = %d, want 3", len(events))
	}
}
