package store

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

// mfaCodeTTL is the challenge window for emailed login codes.
const mfaCodeTTL = 10 * time.Minute

type MFACodeStore struct {
	db *sql.DB
}

func NewMFACodeStore(db *sql.DB) *MFACodeStore {
	return &MFACodeStore{db: db}
}

func scanMFACode(scanner interface{ Scan(...any) error }) (*model.MFACode, error) {
	var c model.MFACode
	var consumedAt sql.NullTime
	err := scanner.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &consumedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if consumedAt.Valid {
		c.ConsumedAt = &consumedAt.Time
	}
	return &c, nil
}

const mfaCodeCols = `id, user_id, code, expires_at, consumed_at, created_at`

// generateNumericCode returns a 6-digit code (100000-999999).
func generateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue creates a fresh challenge code for the user. Any pending code is
// retired in the same transaction, so two interleaved issuances can never
// leave two live codes for one user.
func (s *MFACodeStore) Issue(userID int64) (*model.MFACode, error) {
	code, err := generateNumericCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(mfaCodeTTL)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE mfa_codes SET consumed_at = datetime('now') WHERE user_id = ? AND consumed_at IS NULL`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("retire previous mfa codes: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO mfa_codes (user_id, code, expires_at) VALUES (?, ?, ?)`,
		userID, code, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert mfa code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+mfaCodeCols+` FROM mfa_codes WHERE id = ?`, id)
	return scanMFACode(row)
}

// Consume validates and permanently spends the user's pending code. A correct
// but expired code yields ErrCodeExpired; everything else that can go wrong
// (no code, wrong value, replay) yields ErrCodeInvalid.
func (s *MFACodeStore) Consume(userID int64, code string) error {
	row := s.db.QueryRow(
		`SELECT `+mfaCodeCols+` FROM mfa_codes WHERE user_id = ? AND consumed_at IS NULL ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	)
	c, err := scanMFACode(row)
	if err == sql.ErrNoRows {
		return ErrCodeInvalid
	}
	if err != nil {
		return fmt.Errorf("get mfa code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return ErrCodeInvalid
	}
	if !c.ExpiresAt.After(time.Now().UTC()) {
		return ErrCodeExpired
	}

	result, err := s.db.Exec(
		`UPDATE mfa_codes SET consumed_at = datetime('now') WHERE id = ? AND consumed_at IS NULL`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("consume mfa code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Lost a race against another consumer.
		return ErrCodeInvalid
	}
	return nil
}

func (s *MFACodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM mfa_codes WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired mfa codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
