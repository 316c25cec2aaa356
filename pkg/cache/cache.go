package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Service is the small cache surface the application depends on.
// Set accepts strings as-is and JSON-encodes everything else; Get
// mirrors that with a *string fast path.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	Close() error
}

// Key joins parts into a colon-separated cache key.
func Key(parts ...interface{}) string {
	segs := make([]string, len(parts))
	for i, p := range parts {
		segs[i] = fmt.Sprintf("%v", p)
	}
	return strings.Join(segs, ":")
}

// MGetTyped fetches keys in one round trip and decodes each hit as T.
// Entries that fail to decode are dropped rather than failing the batch.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for k, v := range raw {
		var t T
		if json.Unmarshal([]byte(v), &t) == nil {
			out[k] = t
		}
	}
	return out, nil
}
