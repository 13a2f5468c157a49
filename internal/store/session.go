package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(
		&s.ID, &s.UserID, &s.Token, &s.CreatedAt, &s.LastActivity,
		&s.ExpiresAt, &s.Active, &s.IPAddress, &s.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, user_id, token, created_at, last_activity, expires_at, active, ip_address, user_agent`

// Create records a session for an already-minted token. expiresAt is the
// token's own deadline; the session never outlives it and is never extended.
func (s *SessionStore) Create(userID int64, token string, expiresAt time.Time, ipAddress, userAgent string) (*model.Session, error) {
	result, err := s.db.Exec(
		`INSERT INTO sessions (user_id, token, expires_at, ip_address, user_agent) VALUES (?, ?, ?, ?, ?)`,
		userID, token, expiresAt.UTC(), ipAddress, userAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetActiveByToken returns the live session for a token, or nil when the
// token is unknown, revoked, or past its deadline. Callers get no hint which.
func (s *SessionStore) GetActiveByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND active = 1 AND expires_at > datetime('now')`,
		token,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// Touch bumps last_activity. The expiry deadline is deliberately untouched.
func (s *SessionStore) Touch(id int64) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_activity = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke deactivates a session. Revoking an already-inactive session is a
// no-op success.
func (s *SessionStore) Revoke(id int64) error {
	_, err := s.db.Exec(`UPDATE sessions SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeOwned deactivates a session only if it belongs to userID. The
// returned bool is false when no such session exists for that user.
func (s *SessionStore) RevokeOwned(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE sessions SET active = 0 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("revoke owned session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RevokeAllForUser deactivates every active session of one user in a single
// statement, so no session that existed at invocation can slip through.
func (s *SessionStore) RevokeAllForUser(userID int64) (int64, error) {
	return revokeAllForUser(s.db, userID)
}

// RevokeAllForUserTx is RevokeAllForUser inside a caller-owned transaction.
func (s *SessionStore) RevokeAllForUserTx(tx *sql.Tx, userID int64) (int64, error) {
	return revokeAllForUser(tx, userID)
}

func revokeAllForUser(q querier, userID int64) (int64, error) {
	result, err := q.Exec(
		`UPDATE sessions SET active = 0 WHERE user_id = ? AND active = 1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListActiveForUser returns live sessions, newest activity first. Sessions
// past their deadline are excluded even before the sweeper removes them.
func (s *SessionStore) ListActiveForUser(userID int64) ([]*model.Session, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionCols+` FROM sessions WHERE user_id = ? AND active = 1 AND expires_at > datetime('now') ORDER BY last_activity DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions for user: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) CountActiveForUser(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND active = 1 AND expires_at > datetime('now')`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sessions for user: %w", err)
	}
	return count, nil
}

// SweepExpired deletes sessions whose deadline has passed. Explicitly revoked
// sessions stay as inactive rows until they expire.
func (s *SessionStore) SweepExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
