package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Router composes the API handlers behind a single route registrar.
type Router struct {
	signals     *SignalsHandler
	adjustments *AdjustmentsHandler
	healthFn    func() bool
}

func NewRouter(signals *SignalsHandler, adjustments *AdjustmentsHandler) *Router {
	return &Router{signals: signals, adjustments: adjustments}
}

// SetHealthCheck injects a readiness probe, typically the ingest
// stream connection state.
func (r *Router) SetHealthCheck(fn func() bool) { r.healthFn = fn }

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.signals.RegisterRoutes(e)
	r.adjustments.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/readyz", func(c echo.Context) error {
		if r.healthFn != nil && !r.healthFn() {
			return c.String(http.StatusServiceUnavailable, "ingest disconnected")
		}
		return c.String(http.StatusOK, "ready")
	})
}
