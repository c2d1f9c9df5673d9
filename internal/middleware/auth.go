// Package middleware provides request logging, tracing, metrics, rate limiting
// and the admin authorization guard.
package middleware

import (
	"context"
	"strings"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PrincipalLocal is the Fiber locals key holding the authenticated *auth.Principal.
const PrincipalLocal = "principal"

// TokenVerifier validates a bearer credential.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// RevocationChecker reports whether a credential id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// BearerToken extracts the credential of an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AdminGuard admits a request only with a valid, unrevoked admin credential.
// A missing or malformed header yields UNAUTHORIZED; any other rejection yields
// INVALID_CREDENTIAL. revocations may be nil.
func AdminGuard(verifier TokenVerifier, revocations RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthorized"))
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewInvalidCredentialError("Invalid or expired token"))
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.UserContext(), principal.TokenID)
			if err != nil {
				Logger.WarnContext(c.UserContext(), "revocation lookup failed", "error", err)
			} else if revoked {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewInvalidCredentialError("Invalid or expired token"))
			}
		}

		c.Locals(PrincipalLocal, principal)
		c.SetUserContext(auth.WithPrincipal(c.UserContext(), principal))
		return c.Next()
	}
}
