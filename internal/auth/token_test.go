package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"fourwcycle/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestTokenManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, 0)
	token, issued, err := m.Issue("admin")
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, m.TTL())
	assert.NotEmpty(t, issued.TokenID)

	p, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Subject)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, issued.TokenID, p.TokenID)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), p.ExpiresAt, 5*time.Second)
}

func TestTokenManager_VerifyRejects(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, time.Hour)
	valid, _, err := m.Issue("admin")
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	baseClaims := func() Claims {
		now := time.Now()
		return Claims{
			Role: RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "admin",
				Issuer:    tokenIssuer,
				Audience:  jwt.ClaimStrings{tokenAudience},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				ID:        "jti-1",
			},
		}
	}

	wrongRole := baseClaims()
	wrongRole.Role = "editor"
	wrongIssuer := baseClaims()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := baseClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"public"}
	noExpiry := baseClaims()
	noExpiry.ExpiresAt = nil
	noID := baseClaims()
	noID.ID = ""

	forged := baseClaims()
	forged.Subject = "intruder"
	forgedParts := strings.Split(sign(jwt.SigningMethodHS256, []byte("forger-secret-forger-secret-forger"), forged), ".")
	validParts := strings.Split(valid, ".")
	tampered := forgedParts[0] + "." + forgedParts[1] + "." + validParts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"tampered payload", tampered},
		{"other secret", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), baseClaims())},
		{"HS512 algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), baseClaims())},
		{"none algorithm", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, baseClaims())},
		{"wrong role", sign(jwt.SigningMethodHS256, []byte(testSecret), wrongRole)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{"wrong audience", sign(jwt.SigningMethodHS256, []byte(testSecret), wrongAudience)},
		{"missing expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"missing token id", sign(jwt.SigningMethodHS256, []byte(testSecret), noID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenManager_Expiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := issuedAt
	m := NewTokenManager(testSecret, DefaultTTL).WithClock(func() time.Time { return clock })

	token, _, err := m.Issue("admin")
	require.NoError(t, err)

	clock = issuedAt.Add(7*time.Hour + 59*time.Minute)
	_, err = m.Verify(token)
	require.NoError(t, err)

	clock = issuedAt.Add(8*time.Hour + time.Second)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	_, err := RequireAdmin(context.Background())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	ctx := WithPrincipal(context.Background(), &Principal{Subject: "x", Role: "viewer"})
	_, err = RequireAdmin(ctx)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	ctx = WithPrincipal(context.Background(), Operator("cli"))
	p, err := RequireAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cli", p.Subject)
}

func TestCredentials_Check(t *testing.T) {
	t.Parallel()

	c, err := NewCredentials("admin", "hunter2", "")
	require.NoError(t, err)

	assert.True(t, c.Check("admin", "hunter2"))
	assert.False(t, c.Check("admin", "wrong"))
	assert.False(t, c.Check("root", "hunter2"))
	assert.False(t, c.Check("", ""))
	assert.Equal(t, "admin", c.Username())

	_, err = NewCredentials("admin", "", "not-a-bcrypt-hash")
	assert.Error(t, err)
	_, err = NewCredentials("", "pw", "")
	assert.Error(t, err)
	_, err = NewCredentials("admin", "", "")
	assert.Error(t, err)
}
