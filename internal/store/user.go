package store

import (
	"database/sql"
	"fmt"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role,
		&u.MFAEnabled, &u.MFASecret, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, full_name, password_hash, role, mfa_enabled, mfa_secret, created_at, updated_at`

// Create inserts a user. passwordHash may be empty for accounts that sign in
// only through the external identity provider.
func (s *UserStore) Create(email, fullName, passwordHash, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	result, err := s.db.Exec(
		`INSERT INTO users (email, full_name, password_hash, role) VALUES (?, ?, ?, ?)`,
		email, fullName, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	return updatePassword(s.db, id, passwordHash)
}

// UpdatePasswordTx is UpdatePassword inside a caller-owned transaction.
func (s *UserStore) UpdatePasswordTx(tx *sql.Tx, id int64, passwordHash string) error {
	return updatePassword(tx, id, passwordHash)
}

func updatePassword(q querier, id int64, passwordHash string) error {
	_, err := q.Exec(
		`UPDATE users SET password_hash = ?, updated_at = datetime('now') WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetMFA flips the MFA flag on and stores the shared secret.
func (s *UserStore) SetMFA(id int64, secret string) error {
	_, err := s.db.Exec(
		`UPDATE users SET mfa_enabled = 1, mfa_secret = ?, updated_at = datetime('now') WHERE id = ?`,
		secret, id,
	)
	if err != nil {
		return fmt.Errorf("set mfa: %w", err)
	}
	return nil
}

// ClearMFA flips the MFA flag off and discards the shared secret.
func (s *UserStore) ClearMFA(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET mfa_enabled = 0, mfa_secret = '', updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear mfa: %w", err)
	}
	return nil
}
