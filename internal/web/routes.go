package web

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/octobees/signup/internal/config"
	middlewarepkg "github.com/octobees/signup/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Register *RegisterHandler
}

// NewServer builds the echo instance serving the registration form.
func NewServer(cfg *config.Config, logger logrus.FieldLogger, gatherer prometheus.Gatherer, handlers Handlers) (*echo.Echo, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(logger))
	e.Use(echoMiddleware.Recover())

	RegisterRoutes(e, cfg, gatherer, handlers)
	return e, nil
}

// RegisterRoutes wires all HTTP routes.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, gatherer prometheus.Gatherer, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	pages := e.Group("", middlewarepkg.Visitor())
	pages.GET("/register", handlers.Register.Show)
	pages.POST("/register", handlers.Register.Submit)
	pages.POST("/register/verification", handlers.Register.SendCode, middlewarepkg.VerificationRateLimiter(cfg.RateLimitVerification, handlers.Register.Throttled))
	pages.POST("/register/challenge", handlers.Register.Challenge)
	pages.GET("/login", handlers.Register.Login)
}
