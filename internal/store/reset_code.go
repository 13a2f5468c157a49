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

// resetCodeTTL is deliberately longer than the MFA window: recovery happens
// over email round-trips, not an open login form.
const resetCodeTTL = 30 * time.Minute

const resetCodeLength = 8

const resetCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type ResetCodeStore struct {
	db *sql.DB
}

func NewResetCodeStore(db *sql.DB) *ResetCodeStore {
	return &ResetCodeStore{db: db}
}

func scanResetCode(scanner interface{ Scan(...any) error }) (*model.ResetCode, error) {
	var c model.ResetCode
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

const resetCodeCols = `id, user_id, code, expires_at, consumed_at, created_at`

// generateResetCode returns an 8-character uppercase alphanumeric code.
func generateResetCode() (string, error) {
	buf := make([]byte, resetCodeLength)
	max := big.NewInt(int64(len(resetCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate reset code: %w", err)
		}
		buf[i] = resetCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Issue creates a fresh recovery code, retiring any pending one in the same
// transaction.
func (s *ResetCodeStore) Issue(userID int64) (*model.ResetCode, error) {
	code, err := generateResetCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(resetCodeTTL)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE reset_codes SET consumed_at = datetime('now') WHERE user_id = ? AND consumed_at IS NULL`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("retire previous reset codes: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO reset_codes (user_id, code, expires_at) VALUES (?, ?, ?)`,
		userID, code, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reset code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+resetCodeCols+` FROM reset_codes WHERE id = ?`, id)
	return scanResetCode(row)
}

// Consume follows the same contract as MFACodeStore.Consume.
func (s *ResetCodeStore) Consume(userID int64, code string) error {
	return consumeResetCode(s.db, userID, code)
}

// ConsumeTx is Consume inside a caller-owned transaction, so the consume
// can commit or roll back together with the mutations the code authorizes.
func (s *ResetCodeStore) ConsumeTx(tx *sql.Tx, userID int64, code string) error {
	return consumeResetCode(tx, userID, code)
}

func consumeResetCode(q querier, userID int64, code string) error {
	row := q.QueryRow(
		`SELECT `+resetCodeCols+` FROM reset_codes WHERE user_id = ? AND consumed_at IS NULL ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	)
	c, err := scanResetCode(row)
	if err == sql.ErrNoRows {
		return ErrCodeInvalid
	}
	if err != nil {
		return fmt.Errorf("get reset code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return ErrCodeInvalid
	}
	if !c.ExpiresAt.After(time.Now().UTC()) {
		return ErrCodeExpired
	}

	result, err := q.Exec(
		`UPDATE reset_codes SET consumed_at = datetime('now') WHERE id = ? AND consumed_at IS NULL`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrCodeInvalid
	}
	return nil
}

func (s *ResetCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM reset_codes WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
