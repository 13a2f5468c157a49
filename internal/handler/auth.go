package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bunkhouselabs/bunkhouse/internal/auth"
	"github.com/bunkhouselabs/bunkhouse/internal/middleware"
	"github.com/bunkhouselabs/bunkhouse/internal/model"
	"github.com/bunkhouselabs/bunkhouse/internal/oauth"
	"github.com/bunkhouselabs/bunkhouse/internal/store"
)

const auditListLimit = 50

type AuthHandler struct {
	svc    *auth.Service
	google *oauth.Client
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, google *oauth.Client, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, google: google, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code"`
}

type tokenResponse struct {
	Token       string    `json:"token,omitempty"`
	Role        string    `json:"role,omitempty"`
	MFARequired bool      `json:"mfa_required"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.MFACode = strings.TrimSpace(req.MFACode)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	result, err := h.svc.Authenticate(r.Context(), req.Username, req.Password, req.MFACode, middleware.RealIP(r), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if result.MFARequired {
		// Not a failure: the caller must return with the emailed code.
		writeJSON(w, http.StatusOK, tokenResponse{MFARequired: true})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token, Role: result.Role, ExpiresAt: result.ExpiresAt})
}

type signupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	result, err := h.svc.Signup(r.Context(), req.Email, req.FullName, req.Password, middleware.RealIP(r), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: result.Token, Role: result.Role, ExpiresAt: result.ExpiresAt})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	if err := h.svc.Logout(r.Context(), ac); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), ac, req.OldPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed, please sign in again"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword acknowledges identically whether or not the address maps to
// an account. Internal failures are logged and still acknowledged; the
// response must never become an existence oracle.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestReset(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		h.logger.Error("request reset", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if an account with this email exists, a password reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and code are required")
		return
	}
	if err := h.svc.Reset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset, please sign in with your new password"})
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) EnableMFA(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	enrollment, err := h.svc.EnableMFA(r.Context(), ac, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":      enrollment.Secret,
		"otpauth_url": enrollment.OTPAuthURL,
	})
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	var req mfaVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.VerifyMFA(r.Context(), ac, strings.TrimSpace(req.Code)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "code verified"})
}

func (h *AuthHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.DisableMFA(r.Context(), ac, req.Password); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "mfa disabled"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	user, sessionCount, err := h.svc.Me(r.Context(), ac)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              user.ID,
		"email":           user.Email,
		"full_name":       user.FullName,
		"role":            user.Role,
		"mfa_enabled":     user.MFAEnabled,
		"active_sessions": sessionCount,
	})
}

type sessionSummary struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	IsCurrent    bool      `json:"is_current"`
}

func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	sessions, err := h.svc.Sessions(r.Context(), ac)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sessionSummary{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
			ExpiresAt:    sess.ExpiresAt,
			IPAddress:    sess.IPAddress,
			UserAgent:    sess.UserAgent,
			IsCurrent:    sess.Token == ac.Token,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *AuthHandler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id must be an integer")
		return
	}
	if err := h.svc.TerminateSession(r.Context(), ac, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session terminated"})
}

func (h *AuthHandler) GoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || !h.google.Configured() {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "identity provider not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.google.AuthURL()})
}

type exchangeRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) GoogleExchange(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || !h.google.Configured() {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "identity provider not configured")
		return
	}
	var req exchangeRequest
	if !decode(w, r, &req) {
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	result, err := h.svc.Exchange(r.Context(), req.Code, middleware.RealIP(r), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token, Role: result.Role, ExpiresAt: result.ExpiresAt})
}

// Audit exposes recent audit events to managers. RequireRole guards the
// route; this handler only reads.
func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.AuditTrail(r.Context(), auditListLimit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []*model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

// writeServiceError maps service failures to stable error kinds. Anything
// unrecognized is an internal storage problem: logged, never echoed.
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "invalid_password", "invalid password")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", "password must be at least 6 characters")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", "email already registered")
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, auth.ErrExchangeFailed):
		writeError(w, http.StatusBadRequest, "exchange_failed", "identity exchange failed")
	case errors.Is(err, store.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "code_expired", "code expired")
	case errors.Is(err, store.ErrCodeInvalid):
		writeError(w, http.StatusBadRequest, "code_invalid", "invalid code")
	default:
		h.logger.Error("auth operation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
