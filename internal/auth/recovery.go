package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/bunkhouselabs/bunkhouse/internal/store"
)

// RequestReset starts password recovery for an email address. It returns nil
// whether or not the address maps to an account: the caller's acknowledgement
// must not reveal account existence. Password-less accounts (external
// identity only) are treated like unknown addresses.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil
	}

	rc, err := s.resetCodes.Issue(user.ID)
	if err != nil {
		return err
	}
	s.deliver("reset code", user.Email, func() error {
		return s.mailer.SendResetCode(user.Email, rc.Code)
	})
	s.record(user.Email, "password_reset_requested", "reset code issued", "")
	return nil
}

// Reset consumes a recovery code and installs the new password. Success
// revokes every session of the user, including the one that requested the
// reset. An unknown or password-less email fails exactly like a wrong code.
// Consume, hash update, and revocations commit together: an error leaves
// the code unconsumed and the old password in force, so the user can retry.
func (s *Service) Reset(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return store.ErrCodeInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.resetCodes.ConsumeTx(tx, user.ID, code); err != nil {
		return err
	}
	if err := s.users.UpdatePasswordTx(tx, user.ID, string(hash)); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAllForUserTx(tx, user.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.record(user.Email, "password_reset", "password reset, all sessions revoked", "")
	return nil
}
