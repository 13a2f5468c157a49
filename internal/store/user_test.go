package store

import (
	"testing"

	"github.com/bunkhouselabs/bunkhouse/internal/database"
	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice Smith", "hash123", model.RoleCustomer)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Role != model.RoleCustomer {
		t.Errorf("role = %q, want %q", u.Role, model.RoleCustomer)
	}
	if u.MFAEnabled {
		t.Error("new user should not have MFA enabled")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", "hash", model.RoleCustomer); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("alice@example.com", "Other Alice", "hash2", model.RoleCustomer); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestUserCreateUnknownRole(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", "hash", "superadmin"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestUserCreateWithoutPassword(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("oauth@example.com", "OAuth User", "", model.RoleCustomer)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.PasswordHash != "" {
		t.Errorf("password hash = %q, want empty", u.PasswordHash)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice", "hash", model.RoleManager)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != created.ID {
		t.Errorf("id = %d, want %d", u.ID, created.ID)
	}
	if u.Role != model.RoleManager {
		t.Errorf("role = %q, want %q", u.Role, model.RoleManager)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserUpdatePassword(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice", "oldhash", model.RoleCustomer)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.UpdatePassword(created.ID, "newhash"); err != nil {
		t.Fatalf("update password: %v", err)
	}

	u, err := us.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u.PasswordHash != "newhash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "newhash")
	}
}

func TestUserSetAndClearMFA(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice", "hash", model.RoleCustomer)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.SetMFA(created.ID, "SECRET123"); err != nil {
		t.Fatalf("set mfa: %v", err)
	}
	u, _ := us.GetByID(created.ID)
	if !u.MFAEnabled {
		t.Error("expected MFA enabled")
	}
	if u.MFASecret != "SECRET123" {
		t.Errorf("mfa secret = %q, want %q", u.MFASecret, "SECRET123")
	}

	if err := us.ClearMFA(created.ID); err != nil {
		t.Fatalf("clear mfa: %v", err)
	}
	u, _ = us.GetByID(created.ID)
	if u.MFAEnabled {
		t.Error("expected MFA disabled")
	}
	if u.MFASecret != "" {
		t.Errorf("mfa secret = %q, want empty", u.MFASecret)
	}
}
