package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option configures the connection pool.
type Option func(*settings)

type settings struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	connectTimeout  time.Duration
}

// WithMaxConns sets pool size bounds.
func WithMaxConns(max, min int32) Option {
	return func(s *settings) {
		if max > 0 {
			s.maxConns = max
		}
		if min > 0 {
			s.minConns = min
		}
	}
}

// WithConnLifetime sets the max lifetime of a pooled connection.
func WithConnLifetime(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxConnLifetime = d
		}
	}
}

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// NewPool connects a pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string, opts ...Option) (*pgxpool.Pool, error) {
	s := &settings{
		maxConns:        10,
		minConns:        2,
		maxConnLifetime: 30 * time.Minute,
		connectTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}
	cfg.MaxConns = s.maxConns
	cfg.MinConns = s.minConns
	cfg.MaxConnLifetime = s.maxConnLifetime

	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}
