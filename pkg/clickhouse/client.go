package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

type settings struct {
	host         string
	port         int
	database     string
	user         string
	password     string
	maxOpen      int
	maxIdle      int
	maxLifetime  time.Duration
	dialTimeout  time.Duration
	readTimeout  time.Duration
	useHTTP      bool
	asyncInsert  bool
	waitForAsync bool
	maxExecTime  time.Duration
}

// ClientOption adjusts connection settings for NewClient.
type ClientOption func(*settings)

func WithHost(host string) ClientOption {
	return func(s *settings) { s.host = host }
}

func WithPort(port int) ClientOption {
	return func(s *settings) { s.port = port }
}

func WithDatabase(db string) ClientOption {
	return func(s *settings) { s.database = db }
}

func WithCredentials(user, password string) ClientOption {
	return func(s *settings) {
		s.user = user
		s.password = password
	}
}

func WithMaxConnections(open, idle int) ClientOption {
	return func(s *settings) {
		s.maxOpen = open
		s.maxIdle = idle
	}
}

// WithTimeouts sets the dial and read timeouts. Writes are governed by
// the insert settings, not a DSN timeout.
func WithTimeouts(dial, read, _ time.Duration) ClientOption {
	return func(s *settings) {
		s.dialTimeout = dial
		s.readTimeout = read
	}
}

// WithHTTP selects the HTTP protocol over the native one.
func WithHTTP(useHTTP bool) ClientOption {
	return func(s *settings) { s.useHTTP = useHTTP }
}

// WithAsyncInsert enables server-side insert batching, optionally
// waiting for the batch flush before acking.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(s *settings) {
		s.asyncInsert = enabled
		s.waitForAsync = wait
	}
}

// WithMaxExecutionTime bounds individual query runtime.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(s *settings) { s.maxExecTime = d }
}

// Client holds the ClickHouse connection pool.
type Client struct {
	db *sql.DB
}

func NewClient(opts ...ClientOption) (*Client, error) {
	s := settings{
		maxOpen:     10,
		maxIdle:     5,
		maxLifetime: 5 * time.Minute,
		dialTimeout: 5 * time.Second,
		readTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.host == "" {
		return nil, errors.New("clickhouse: host is required")
	}

	db, err := sql.Open("clickhouse", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpen)
	db.SetMaxIdleConns(s.maxIdle)
	db.SetConnMaxLifetime(s.maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db}, nil
}

func (s settings) dsn() string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(s.user, s.password),
		Host:   fmt.Sprintf("%s:%d", s.host, s.port),
		Path:   "/" + s.database,
	}
	if s.useHTTP {
		u.Scheme = "clickhouse+http"
	}

	q := url.Values{}
	if s.dialTimeout > 0 {
		q.Set("dial_timeout", s.dialTimeout.String())
	}
	if s.readTimeout > 0 {
		q.Set("read_timeout", s.readTimeout.String())
	}
	if s.maxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(s.maxExecTime.Seconds())))
	}
	if s.asyncInsert {
		q.Set("async_insert", "1")
		if s.waitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DB exposes the pool for repositories.
func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
