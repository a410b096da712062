package middleware

import (
	"context"
	"strings"

	"chillistore/internal/invalidation"
	"chillistore/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	sessionKey   = "session"
	localeHeader = "X-Locale"
)

// Gate is satisfied by *services.AuthService.
type Gate interface {
	Authorize(ctx context.Context, caller services.CallerContext) (*services.AuthorizedSession, error)
}

// AuthRequired is a Fiber middleware that only lets shop owners of this store through.
func AuthRequired(gate Gate, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		caller, err := Caller(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": err.Error(),
			})
		}

		session, err := gate.Authorize(c.UserContext(), caller)
		if err != nil {
			logger.Debug("admin request rejected", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}

		// Store the session in Fiber context for subsequent handlers
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

// Caller extracts the bearer token and locale of the request.
func Caller(c *fiber.Ctx) (services.CallerContext, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return services.CallerContext{}, fiber.NewError(fiber.StatusUnauthorized, "Authorization header is required")
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return services.CallerContext{}, fiber.NewError(fiber.StatusUnauthorized, "Authorization header format must be 'Bearer <token>'")
	}

	raw := c.Get(localeHeader)
	if raw == "" {
		raw = c.Query("locale")
	}
	// Unusable locales are dropped so the service default applies.
	locale, _ := invalidation.NormalizeLocale(raw)
	return services.CallerContext{Token: strings.TrimSpace(parts[1]), Locale: locale}, nil
}

// Session returns the session stored by AuthRequired, or nil.
func Session(c *fiber.Ctx) *services.AuthorizedSession {
	session, _ := c.Locals(sessionKey).(*services.AuthorizedSession)
	return session
}
