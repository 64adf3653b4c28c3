package domain

import (
	"context"
	"time"
)

// StateCache caches recomputed position state keyed by position ID. The cache
// is a read-through accelerator only; a miss always falls back to a fresh
// reduction of the transaction list.
type StateCache interface {
	Set(ctx context.Context, positionID string, state PositionState) error
	Get(ctx context.Context, positionID string) (PositionState, error)
	Invalidate(ctx context.Context, positionID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locks so periodic jobs (archival) run on
// exactly one instance at a time.
type LockManager interface {
	// Acquire returns an unlock func on success, or ErrLockHeld when another
	// holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for journal events and durable streams for
// consumers that must not miss a mutation.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
