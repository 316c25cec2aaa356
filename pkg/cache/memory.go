package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultMemoryTTL = 24 * time.Hour

type memEntry struct {
	value    interface{}
	expireAt time.Time
	touched  time.Time
}

// MemoryCache is a process-local Service backed by a map with TTLs
// and least-recently-used eviction once maxEntries is reached.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memEntry
	maxEntries int
	sweepStop  chan struct{}
	sweepOnce  sync.Once
}

// MemoryOption adjusts a MemoryCache before use.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize caps the number of live entries.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(m *MemoryCache) { m.maxEntries = n }
}

// NewMemoryCache builds an in-process cache and starts a background
// sweep that drops expired entries every few minutes.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		entries:    make(map[string]*memEntry),
		maxEntries: 1000,
		sweepStop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweep(5 * time.Minute)
	return m
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}
	m.entries[key] = &memEntry{value: value, expireAt: now.Add(ttl), touched: now}
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && time.Now().After(e.expireAt) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.mu.Unlock()
		return ErrCacheMiss
	}
	e.touched = time.Now()
	val := e.value
	m.mu.Unlock()

	if sp, ok := dest.(*string); ok {
		if s, ok := val.(string); ok {
			*sp = s
			return nil
		}
	}
	// Round-trip through JSON so Get fills typed destinations the same
	// way the Redis implementation does.
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	now := time.Now()
	out := make(map[string]string, len(keys))

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		e, ok := m.entries[k]
		if !ok || now.After(e.expireAt) {
			continue
		}
		if s, ok := e.value.(string); ok {
			out[k] = s
			continue
		}
		if raw, err := json.Marshal(e.value); err == nil {
			out[k] = string(raw)
		}
	}
	return out, nil
}

// Close stops the background sweep.
func (m *MemoryCache) Close() error {
	m.sweepOnce.Do(func() { close(m.sweepStop) })
	return nil
}

// evictOldest drops the least recently touched entry. Caller holds mu.
func (m *MemoryCache) evictOldest() {
	var victim string
	var oldest time.Time
	for k, e := range m.entries {
		if victim == "" || e.touched.Before(oldest) {
			victim, oldest = k, e.touched
		}
	}
	if victim != "" {
		delete(m.entries, victim)
	}
}

func (m *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.sweepStop:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expireAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
