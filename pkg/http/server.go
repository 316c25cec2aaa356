package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"PaperTune/pkg/http/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type serverSettings struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	cors            bool
}

// ServerOption adjusts settings for NewServer.
type ServerOption func(*serverSettings)

func WithHost(host string) ServerOption {
	return func(s *serverSettings) { s.host = host }
}

func WithPort(port int) ServerOption {
	return func(s *serverSettings) { s.port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.readTimeout = read
		s.writeTimeout = write
		s.shutdownTimeout = shutdown
	}
}

func WithCORS(enabled bool) ServerOption {
	return func(s *serverSettings) { s.cors = enabled }
}

// Server is the echo-based API server. It wires recovery, request
// logging, request metrics and the Prometheus scrape endpoint before
// handing route registration to the Handler.
type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	s := &serverSettings{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 10 * time.Second,
		cors:            true,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = s.readTimeout
	e.Server.WriteTimeout = s.writeTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogging())
	e.Use(middleware.Metrics(time.Second))
	if s.cors {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType,
				echo.HeaderAccept, echo.HeaderAuthorization,
			},
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		echo: e,
		addr: fmt.Sprintf("%s:%d", s.host, s.port),
	}
}

// Start begins serving in the background and returns immediately.
func (s *Server) Start() error {
	go func() {
		log.Printf("http server: listening on %s", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests up to ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
