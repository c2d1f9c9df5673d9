package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/cache"
	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"
)

// Revoker records logged-out token ids. cache.TokenRevocations implements it.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// LoginResult is the credential handed to the admin UI.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService handles admin login and logout.
type AuthService struct {
	creds       *auth.Credentials
	tokens      *auth.TokenManager
	revocations Revoker
}

// NewAuthService wires the admin login flow. revocations may be nil.
func NewAuthService(creds *auth.Credentials, tokens *auth.TokenManager, revocations Revoker) *AuthService {
	return &AuthService{creds: creds, tokens: tokens, revocations: revocations}
}

// Login exchanges the admin username and password for a signed credential.
// Unknown user and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if !s.creds.Check(username, password) {
		observability.LoginAttempts.WithLabelValues("failure").Inc()
		observability.GlobalLogger.WarnContext(ctx, "admin login failed")
		return nil, models.NewInvalidCredentialError("Invalid credentials.")
	}

	res, err := s.issue(username)
	if err != nil {
		return nil, err
	}
	observability.LoginAttempts.WithLabelValues("success").Inc()
	observability.GlobalLogger.InfoContext(ctx, "admin logged in", slog.String("admin", username))
	return res, nil
}

// IssueOperatorToken signs a credential for the configured admin without a password check,
// for trusted command-line tools that already hold the signing secret.
func (s *AuthService) IssueOperatorToken() (*LoginResult, error) {
	return s.issue(s.creds.Username())
}

func (s *AuthService) issue(subject string) (*LoginResult, error) {
	token, principal, err := s.tokens.Issue(subject)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: principal.ExpiresAt}, nil
}

// Logout revokes the credential the caller authenticated with. Without Redis
// the request succeeds but the token stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context) error {
	principal, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	if s.revocations == nil || principal.TokenID == "" {
		observability.GlobalLogger.WarnContext(ctx, "token revocation unavailable", slog.String("admin", principal.Subject))
		return nil
	}

	if err := s.revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			observability.GlobalLogger.WarnContext(ctx, "token revocation unavailable", slog.String("admin", principal.Subject))
			return nil
		}
		return models.NewInternalError(err)
	}
	observability.GlobalLogger.InfoContext(ctx, "admin logged out", slog.String("admin", principal.Subject))
	return nil
}
