package cache

import (
	"context"
	"sync"
	"time"
)

// Value holds a single process-wide value that expires after a fixed TTL.
type Value[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	val       T
	expiresAt time.Time
	now       func() time.Time
}

// NewValue creates an empty Value with the given TTL.
func NewValue[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value and whether it is still fresh.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.expiresAt.IsZero() || !v.now().Before(v.expiresAt) {
		var zero T
		return zero, false
	}
	return v.val, true
}

// Set stores val and restarts the expiry clock.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = val
	v.expiresAt = v.now().Add(v.ttl)
}

// Invalidate drops the cached value.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.val = zero
	v.expiresAt = time.Time{}
}

// GetOrLoad returns the fresh cached value or calls load and caches its result.
// Errors are returned without caching.
func (v *Value[T]) GetOrLoad(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if val, ok := v.Get(); ok {
		return val, nil
	}
	val, err := load(ctx)
	if err != nil {
		return val, err
	}
	v.Set(val)
	return val, nil
}
