package middleware

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsInit      sync.Once
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	responseBytes    *prometheus.HistogramVec
)

func registerHTTPMetrics() {
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertune_http_requests_total",
		Help: "Requests served, by templated route.",
	}, []string{"route", "method", "status"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertune_http_request_duration_seconds",
		Help:    "Request latency.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route", "method"})
	requestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "papertune_http_in_flight_requests",
		Help: "Requests currently being handled.",
	}, []string{"route"})
	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertune_http_response_size_bytes",
		Help:    "Response body size.",
		Buckets: []float64{200, 1_000, 5_000, 25_000, 100_000, 500_000},
	}, []string{"route"})
}

// Metrics records per-route request metrics. The route label uses
// echo's templated path (e.g. /api/adjustments/:id) so parameterized
// requests share one series. Requests slower than slow are also logged.
func Metrics(slow time.Duration) echo.MiddlewareFunc {
	metricsInit.Do(registerHTTPMetrics)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			requestsInFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			requestsInFlight.WithLabelValues(route).Dec()

			status := c.Response().Status
			requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
			responseBytes.WithLabelValues(route).Observe(float64(c.Response().Size))

			if slow > 0 && elapsed >= slow {
				log.Printf("slow request: %s %s took %s", method, route, elapsed)
			}
			return err
		}
	}
}
