package middleware

import (
	"errors"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/pkg/actorstore"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const actorLocalKey = "actor"

// NewActorMiddleware resolves the X-Session-Token header to an admin actor
// and injects it into the request context. The Local is cleared on every
// exit path: Fiber contexts are pooled, and a stale actor must never leak
// into the next request.
func NewActorMiddleware(store *actorstore.Store, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Session-Token")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing session token"})
		}

		actor, err := store.Get(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, common.ErrSessionNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unknown or expired session"})
			}
			log.Error("Failed to resolve admin session", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Session store unavailable"})
		}

		c.Locals(actorLocalKey, *actor)
		c.SetUserContext(domain.WithActor(c.UserContext(), *actor))

		defer c.Locals(actorLocalKey, nil)
		return c.Next()
	}
}

// GetActorFromLocals reads the resolved actor for handlers that are not on
// the service-context path.
func GetActorFromLocals(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorLocalKey).(domain.Actor)
	return actor, ok
}
