package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// VisitorCookie names the cookie that identifies a browser across requests.
const VisitorCookie = "signup_visitor"

const visitorTTL = 30 * 24 * time.Hour

// Visitor assigns every browser a stable identifier kept in a cookie.
func Visitor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(VisitorCookie); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					Expires:  time.Now().Add(visitorTTL),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(ContextKeyVisitorID, id)
			return next(c)
		}
	}
}

// VisitorIDFromContext extracts the visitor identifier if available.
func VisitorIDFromContext(c echo.Context) string {
	if val, ok := c.Get(ContextKeyVisitorID).(string); ok {
		return val
	}
	return ""
}
