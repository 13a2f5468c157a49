package store

import (
	"errors"
	"testing"

	"github.com/bunkhouselabs/bunkhouse/internal/database"
	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

func setupMFACodeTestDB(t *testing.T) (*MFACodeStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	u, err := us.Create("alice@example.com", "Alice", "hash", model.RoleCustomer)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewMFACodeStore(db), u.ID
}

func TestMFACodeIssue(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	c, err := cs.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(c.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(c.Code))
	}
	for _, r := range c.Code {
		if r < '0' || r > '9' {
			t.Errorf("code %q contains non-digit %q", c.Code, r)
		}
	}
	if c.ConsumedAt != nil {
		t.Error("fresh code should not be consumed")
	}
}

func TestMFACodeIssueRetiresPrevious(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	first, err := cs.Issue(userID)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	if _, err := cs.Issue(userID); err != nil {
		t.Fatalf("issue second: %v", err)
	}

	// The superseded code no longer works, even if it matches
	if err := cs.Consume(userID, first.Code); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("consume superseded code: err = %v, want ErrCodeInvalid", err)
	}
}

func TestMFACodeConsume(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	c, err := cs.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := cs.Consume(userID, c.Code); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// Replay is rejected
	if err := cs.Consume(userID, c.Code); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("replay: err = %v, want ErrCodeInvalid", err)
	}
}

func TestMFACodeConsumeWrongValue(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	if _, err := cs.Issue(userID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := cs.Consume(userID, "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("wrong code: err = %v, want ErrCodeInvalid", err)
	}
}

func TestMFACodeConsumeNoPending(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	if err := cs.Consume(userID, "123456"); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("no pending code: err = %v, want ErrCodeInvalid", err)
	}
}

func TestMFACodeConsumeExpired(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	c, err := cs.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cs.db.Exec(`UPDATE mfa_codes SET expires_at = datetime('now', '-1 minute') WHERE id = ?`, c.ID)

	if err := cs.Consume(userID, c.Code); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("expired code: err = %v, want ErrCodeExpired", err)
	}
}

func TestMFACodeDeleteExpired(t *testing.T) {
	cs, userID := setupMFACodeTestDB(t)

	c, err := cs.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cs.db.Exec(`UPDATE mfa_codes SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, c.ID)

	n, err := cs.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
