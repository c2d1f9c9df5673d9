package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type revocationStub struct {
	revoked map[string]bool
	err     error
}

func (r revocationStub) IsRevoked(_ context.Context, id string) (bool, error) {
	return r.revoked[id], r.err
}

func TestAdminGuard(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour)
	valid, _, err := tokens.Issue("admin")
	require.NoError(t, err)
	revokedToken, revokedPrincipal, err := tokens.Issue("admin")
	require.NoError(t, err)

	expired, _, err := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		Issue("admin")
	require.NoError(t, err)

	revocations := revocationStub{revoked: map[string]bool{revokedPrincipal.TokenID: true}}

	app := fiber.New()
	app.Get("/admin", AdminGuard(tokens, revocations), func(c *fiber.Ctx) error {
		p, ok := auth.FromContext(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		local, _ := c.Locals(PrincipalLocal).(*auth.Principal)
		return c.JSON(fiber.Map{"subject": p.Subject, "same": local == p})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedCode   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, models.CodeUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, models.CodeUnauthorized},
		{"bearer without token", "Bearer", http.StatusUnauthorized, models.CodeUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, models.CodeInvalidCredential},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, models.CodeInvalidCredential},
		{"revoked token", "Bearer " + revokedToken, http.StatusUnauthorized, models.CodeInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedCode != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedCode, body.Code)
				return
			}
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "admin", body["subject"])
			assert.Equal(t, true, body["same"])
		})
	}
}

func TestAdminGuard_RevocationLookupFailureAdmits(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/admin", AdminGuard(tokens, revocationStub{err: errors.New("redis down")}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
