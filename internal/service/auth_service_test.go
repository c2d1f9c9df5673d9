package service

import (
	"context"
	"testing"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/cache"
	"fourwcycle/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "service-test-secret-with-32-chars!!"

func newAuthService(t *testing.T, revocations Revoker) (*AuthService, *auth.TokenManager) {
	t.Helper()
	creds, err := auth.NewCredentials("admin", "hunter2", "")
	require.NoError(t, err)
	tokens := auth.NewTokenManager(testSecret, 0)
	return NewAuthService(creds, tokens, revocations), tokens
}

func TestAuthService_Login(t *testing.T) {
	svc, tokens := newAuthService(t, nil)

	res, err := svc.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), res.ExpiresAt, time.Minute)

	p, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Subject)
	assert.Equal(t, auth.RoleAdmin, p.Role)

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "hunter2"},
		{"", ""},
	} {
		_, err := svc.Login(context.Background(), tc.user, tc.pass)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeInvalidCredential, appErr.Code)
		assert.Equal(t, "Invalid credentials.", appErr.Message)
	}
}

func TestAuthService_LogoutRevokes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	revocations := cache.NewTokenRevocations(rdb)
	svc, tokens := newAuthService(t, revocations)

	res, err := svc.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	p, err := tokens.Verify(res.Token)
	require.NoError(t, err)

	assert.True(t, models.HasCode(svc.Logout(context.Background()), models.CodeUnauthorized))

	require.NoError(t, svc.Logout(auth.WithPrincipal(context.Background(), p)))
	revoked, err := revocations.IsRevoked(context.Background(), p.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_LogoutWithoutRedis(t *testing.T) {
	svc, tokens := newAuthService(t, cache.NewTokenRevocations(nil))

	res, err := svc.IssueOperatorToken()
	require.NoError(t, err)
	p, err := tokens.Verify(res.Token)
	require.NoError(t, err)

	assert.NoError(t, svc.Logout(auth.WithPrincipal(context.Background(), p)))
}
