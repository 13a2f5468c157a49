package auth

import (
	"context"
	"fmt"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

const otpIssuer = "Bunkhouse"

// MFAEnrollment is handed back once, at enable time. The secret is never
// readable again through the API.
type MFAEnrollment struct {
	Secret     string
	OTPAuthURL string
}

// EnableMFA turns on multi-factor auth after re-verifying the password.
// Password re-entry keeps a hijacked session from silently toggling MFA.
// Enabling also sends a first challenge code so the user can confirm the
// loop works.
func (s *Service) EnableMFA(ctx context.Context, ac AuthContext, password string) (*MFAEnrollment, error) {
	user, err := s.verifyPassword(ac.UserID, password)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate mfa secret: %w", err)
	}

	if err := s.users.SetMFA(user.ID, key.Secret()); err != nil {
		return nil, err
	}
	if err := s.issueMFACode(user); err != nil {
		return nil, err
	}

	s.record(user.Email, "mfa_enabled", "multi-factor authentication enabled", "")
	return &MFAEnrollment{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// VerifyMFA consumes the caller's pending emailed code.
func (s *Service) VerifyMFA(ctx context.Context, ac AuthContext, code string) error {
	if err := s.mfaCodes.Consume(ac.UserID, code); err != nil {
		return err
	}
	s.record(ac.Email, "mfa_verified", "challenge code verified", "")
	return nil
}

// DisableMFA turns multi-factor auth off after re-verifying the password.
// The shared secret is not retained.
func (s *Service) DisableMFA(ctx context.Context, ac AuthContext, password string) error {
	user, err := s.verifyPassword(ac.UserID, password)
	if err != nil {
		return err
	}
	if err := s.users.ClearMFA(user.ID); err != nil {
		return err
	}
	s.record(user.Email, "mfa_disabled", "multi-factor authentication disabled", "")
	return nil
}

// issueMFACode creates a fresh challenge code (retiring any pending one) and
// hands it to the mailer without waiting on delivery.
func (s *Service) issueMFACode(user *model.User) error {
	mc, err := s.mfaCodes.Issue(user.ID)
	if err != nil {
		return err
	}
	s.deliver("mfa code", user.Email, func() error {
		return s.mailer.SendMFACode(user.Email, mc.Code)
	})
	return nil
}

// verifyPassword gates sensitive operations on password re-entry. Accounts
// without a password hash can never pass this gate.
func (s *Service) verifyPassword(userID int64, password string) (*model.User, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidPassword
	}
	return user, nil
}
