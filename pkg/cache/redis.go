package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared cross-process Service. Every key is stored
// under a namespace prefix so several deployments can share one Redis.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

type redisSettings struct {
	host     string
	port     int
	password string
	db       int
	prefix   string
	poolSize int
}

// RedisOption adjusts connection settings for NewRedisCache.
type RedisOption func(*redisSettings)

func WithRedisHost(host string) RedisOption {
	return func(s *redisSettings) { s.host = host }
}

func WithRedisPort(port int) RedisOption {
	return func(s *redisSettings) { s.port = port }
}

func WithRedisPassword(pw string) RedisOption {
	return func(s *redisSettings) { s.password = pw }
}

func WithRedisDB(db int) RedisOption {
	return func(s *redisSettings) { s.db = db }
}

// WithRedisPrefix sets the key namespace.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *redisSettings) { s.prefix = prefix }
}

// NewRedisCache connects to Redis and verifies the connection with a
// short ping before returning.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	s := &redisSettings{
		host:     "localhost",
		port:     6379,
		prefix:   "papertune",
		poolSize: 10,
	}
	for _, opt := range opts {
		opt(s)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Password:     s.password,
		DB:           s.db,
		PoolSize:     s.poolSize,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: s.prefix}, nil
}

// Client exposes the raw connection for components that need Redis
// primitives beyond the cache surface, such as the job queue.
func (c *RedisCache) Client() *redis.Client {
	return c.rdb
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var payload []byte
	if s, ok := value.(string); ok {
		payload = []byte(s)
	} else {
		var err error
		if payload, err = json.Marshal(value); err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
	}
	return c.rdb.Set(ctx, c.key(key), payload, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if sp, ok := dest.(*string); ok {
		*sp = string(raw)
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.rdb.Unlink(ctx, full...).Err()
}

func (c *RedisCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}
