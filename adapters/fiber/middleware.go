package fiber

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/warden/core"
)

const localsClaims = "claims"

// BuildProtectedMiddleware creates a Fiber middleware that validates bearer
// tokens and stores the verified claims in the context for downstream
// handlers.
func (a *Adapter) BuildProtectedMiddleware(verifier core.AccessTokenVerifier) any {
	return a.requireAuth(verifier)
}

func (a *Adapter) requireAuth(verifier core.AccessTokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return a.fail(c, core.ErrMissingAuthHeader)
		}

		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			if !errors.Is(err, core.ErrTokenExpired) {
				err = core.ErrTokenInvalid
			}
			return a.fail(c, err)
		}

		c.Locals(localsClaims, claims)
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by the protected middleware.
func ClaimsFrom(c fiber.Ctx) (*core.Claims, bool) {
	claims, ok := c.Locals(localsClaims).(*core.Claims)
	return claims, ok && claims != nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func bearerToken(c fiber.Ctx) string {
	token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

func (a *Adapter) recordRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	route := c.Route().Path
	if route == "" || route == "/" {
		route = "unmatched"
	}
	a.metrics.RecordRequest(c.Method(), route, status, time.Since(start))
	return err
}
