package compute

import (
	"context"
	"sync"
	"time"

	"stakedeck/internal/ports"
)

// TTL is a minimal in-process TTL cache. Callers choose the TTL per Set.
// Lazy expiration on Get.
type TTL[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	now  func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V]), now: time.Now}
}

// WithClock overrides the time source for deterministic tests.
func (t *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	if now != nil {
		t.now = now
	}
	return t
}

// Get returns the value and true if found and not expired; otherwise zero
// value and false. Expired entries are dropped on the way out.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if t.now().After(e.exp) {
		t.mu.Lock()
		delete(t.data, k)
		t.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.mu.Lock()
	t.data[k] = entry[V]{val: v, exp: t.now().Add(ttl)}
	t.mu.Unlock()
}

// memCache adapts TTL to the ResultCache port; it is the default cache when
// no backend is injected into the coordinator.
type memCache struct {
	ttl *TTL[string, []byte]
}

func newMemCache() *memCache {
	return &memCache{ttl: NewTTL[string, []byte]()}
}

// NewMemoryCache returns the in-process ResultCache used when no external
// cache backend is configured.
func NewMemoryCache() ports.ResultCache {
	return newMemCache()
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.ttl.Get(key)
	return v, ok, nil
}

func (m *memCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.ttl.Set(key, payload, ttl)
	return nil
}
