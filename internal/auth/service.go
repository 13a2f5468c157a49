package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
	"github.com/bunkhouselabs/bunkhouse/internal/store"
)

const minPasswordLength = 6

// Mailer delivers one-time codes out of band. Delivery is fire-and-forget:
// the service never fails an operation because an email did not go out.
type Mailer interface {
	SendMFACode(to, code string) error
	SendResetCode(to, code string) error
}

// IdentityProvider turns a third-party authorization code into a verified
// email and display name.
type IdentityProvider interface {
	Exchange(ctx context.Context, authorizationCode string) (email, fullName string, err error)
}

// Service implements the credential and session lifecycle: password login,
// token issuance, per-device sessions, MFA challenges, password recovery, and
// the external identity exchange.
type Service struct {
	db         *sql.DB
	users      *store.UserStore
	sessions   *store.SessionStore
	mfaCodes   *store.MFACodeStore
	resetCodes *store.ResetCodeStore
	audit      *store.AuditStore
	mailer     Mailer
	provider   IdentityProvider
	jwtSecret  []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
}

func NewService(
	db *sql.DB,
	users *store.UserStore,
	sessions *store.SessionStore,
	mfaCodes *store.MFACodeStore,
	resetCodes *store.ResetCodeStore,
	audit *store.AuditStore,
	mailer Mailer,
	provider IdentityProvider,
	jwtSecret []byte,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:         db,
		users:      users,
		sessions:   sessions,
		mfaCodes:   mfaCodes,
		resetCodes: resetCodes,
		audit:      audit,
		mailer:     mailer,
		provider:   provider,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// LoginResult is the outcome of a successful Authenticate, Signup, or
// Exchange call. MFARequired marks the challenge-required outcome: no token
// or session exists yet and the caller must come back with a code.
type LoginResult struct {
	Token       string
	Role        string
	MFARequired bool
	ExpiresAt   time.Time
}

// Authenticate verifies a username/password pair and, when the account has
// MFA enabled, the emailed challenge code. A valid password with MFA enabled
// and no code issues a fresh code and reports MFARequired instead of a token.
func (s *Service) Authenticate(ctx context.Context, username, password, mfaCode, ipAddress, userAgent string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(username)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.record(username, "login_failed", "failed login attempt", ipAddress)
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			if err := s.issueMFACode(user); err != nil {
				return nil, err
			}
			return &LoginResult{MFARequired: true}, nil
		}
		if err := s.mfaCodes.Consume(user.ID, mfaCode); err != nil {
			return nil, err
		}
	}

	result, err := s.startSession(user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(user.Email, "login_success", fmt.Sprintf("logged in with role %s", user.Role), ipAddress)
	return result, nil
}

// Signup registers a new customer account and signs it in.
func (s *Service) Signup(ctx context.Context, email, fullName, password, ipAddress, userAgent string) (*LoginResult, error) {
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(email, fullName, string(hash), model.RoleCustomer)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err := s.startSession(user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(user.Email, "signup", "account created", ipAddress)
	return result, nil
}

// Logout revokes the calling session only. Other devices stay signed in;
// revoking an already-dead session still succeeds.
func (s *Service) Logout(ctx context.Context, ac AuthContext) error {
	if err := s.sessions.Revoke(ac.SessionID); err != nil {
		return err
	}
	s.record(ac.Email, "logout", "session ended", "")
	return nil
}

// ChangePassword re-verifies the old password, stores the new hash, and
// revokes every session of the user, including the calling one. The hash
// update and the revocations commit together: an error leaves the old
// password in force with every session still live.
func (s *Service) ChangePassword(ctx context.Context, ac AuthContext, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.users.GetByID(ac.UserID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidPassword
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

	if err := s.users.UpdatePasswordTx(tx, user.ID, string(hash)); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAllForUserTx(tx, user.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.record(user.Email, "password_changed", "password changed, all sessions revoked", "")
	return nil
}

// Me returns the caller's account plus its live session count.
func (s *Service) Me(ctx context.Context, ac AuthContext) (*model.User, int, error) {
	user, err := s.users.GetByID(ac.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, 0, ErrInvalidCredentials
	}
	count, err := s.sessions.CountActiveForUser(ac.UserID)
	if err != nil {
		return nil, 0, err
	}
	return user, count, nil
}

// Sessions lists the caller's live sessions, newest activity first.
func (s *Service) Sessions(ctx context.Context, ac AuthContext) ([]*model.Session, error) {
	return s.sessions.ListActiveForUser(ac.UserID)
}

// TerminateSession revokes one of the caller's sessions by id. A session that
// does not exist or belongs to someone else yields ErrSessionNotFound.
func (s *Service) TerminateSession(ctx context.Context, ac AuthContext, sessionID int64) error {
	found, err := s.sessions.RevokeOwned(sessionID, ac.UserID)
	if err != nil {
		return err
	}
	if !found {
		return ErrSessionNotFound
	}
	s.record(ac.Email, "session_terminated", fmt.Sprintf("session %d terminated", sessionID), "")
	return nil
}

// AuditTrail returns the most recent audit events (manager read surface).
func (s *Service) AuditTrail(ctx context.Context, limit int) ([]*model.AuditEvent, error) {
	return s.audit.ListRecent(limit)
}

// startSession mints a token and records its session as one logical unit: if
// the session insert fails, the token never leaves this function.
func (s *Service) startSession(user *model.User, ipAddress, userAgent string) (*LoginResult, error) {
	expiresAt := time.Now().UTC().Add(s.tokenTTL)
	token, err := MintToken(user.ID, user.Email, user.Role, s.jwtSecret, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	if _, err := s.sessions.Create(user.ID, token, expiresAt, ipAddress, userAgent); err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Role: user.Role, ExpiresAt: expiresAt}, nil
}

// deliver runs an email send on its own goroutine so a slow or failing
// mailer cannot stall code issuance.
func (s *Service) deliver(kind, to string, send func() error) {
	go func() {
		if err := send(); err != nil {
			s.logger.Error("send "+kind, "to", to, "error", err)
		}
	}()
}

// record writes an audit event; audit failures are logged, never surfaced.
func (s *Service) record(actor, action, details, ipAddress string) {
	if err := s.audit.Record(actor, action, details, ipAddress); err != nil {
		s.logger.Error("record audit event", "action", action, "error", err)
	}
}
