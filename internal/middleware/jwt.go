package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/internal/utils"
)

// Locals keys set by JWTProtected.
const (
	LocalUserID = "user_id"
	LocalRole   = "user_role"
	LocalEmail  = "user_email"
	LocalToken  = "access_token"
	LocalClaims = "token_claims"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (service.TokenClaims, error)
}

// JWTProtected returns a middleware that validates bearer tokens. Browsers
// cannot set headers on EventSource or websocket requests, so the token may
// also arrive as the access_token query parameter.
func JWTProtected(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}

		claims, err := verifier.Verify(ctx, tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(LocalUserID, claims.UID)
		c.Locals(LocalRole, string(claims.Role))
		c.Locals(LocalEmail, claims.Email)
		c.Locals(LocalToken, tokenString)
		c.Locals(LocalClaims, claims)

		return c.Next()
	}
}

// ClaimsFromContext returns the claims stored by JWTProtected.
func ClaimsFromContext(c *fiber.Ctx) (service.TokenClaims, bool) {
	claims, ok := c.Locals(LocalClaims).(service.TokenClaims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token stored by JWTProtected.
func TokenFromContext(c *fiber.Ctx) string {
	token, _ := c.Locals(LocalToken).(string)
	return token
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, nil
		}
		return "", errAuthorizationMissing
	}

	const bearer = "bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
		return "", errAuthorizationInvalid
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", errTokenInvalid
	}
	return token, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errAuthorizationMissing authError = "authorization header missing"
	errAuthorizationInvalid authError = "invalid authorization header"
	errTokenInvalid         authError = "invalid token"
)
