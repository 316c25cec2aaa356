package cache

import "time"

// BytesCache stores opaque byte payloads with a TTL. It backs the
// response cache on hot read endpoints, where the payload is an
// already-serialized JSON body.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
