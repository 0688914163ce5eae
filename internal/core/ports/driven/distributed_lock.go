package driven

import (
	"context"
	"time"
)

// DistributedLock provides named mutual exclusion across goroutines and instances.
// It serializes mutations of a single chat.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// On success it returns a token identifying this acquisition.
	// Returns acquired=false if the lock is already held.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)

	// Release releases a named lock if token still owns it.
	// Safe to call even if the lock has expired.
	Release(ctx context.Context, name, token string) error

	// Extend extends the TTL of a lock still owned by token.
	Extend(ctx context.Context, name, token string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
