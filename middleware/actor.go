package middleware

import (
	"insurance_crm_go/services"

	"github.com/labstack/echo/v4"
)

const ContextKeyActor = "audit_actor"

// Actor headers set by the authenticating gateway. Session issuance itself
// lives outside this service; by the time a request reaches us the gateway
// has resolved the user.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
)

// ActorContext extracts the acting user for audit logging
func ActorContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := services.AuditActor{
				ID:   c.Request().Header.Get(HeaderActorID),
				Name: c.Request().Header.Get(HeaderActorName),
			}
			if actor.Name == "" {
				actor.Name = "anonymous"
			}
			c.Set(ContextKeyActor, actor)
			return next(c)
		}
	}
}

// GetActor retrieves the acting user from the request context
func GetActor(c echo.Context) services.AuditActor {
	if actor, ok := c.Get(ContextKeyActor).(services.AuditActor); ok {
		return actor
	}
	return services.AuditActor{Name: "anonymous"}
}
