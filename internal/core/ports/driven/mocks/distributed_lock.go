package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure MockDistributedLock implements DistributedLock
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is a mock implementation of DistributedLock for testing.
// It simulates lock behavior with in-memory state and supports custom behavior injection.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	seq   int

	// Custom behavior hooks (optional)
	AcquireFn func(name string, ttl time.Duration) (string, bool, error)
	ReleaseFn func(name, token string) error
	PingFn    func() error

	extends int
}

type lockEntry struct {
	token  string
	expiry time.Time
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		locks: make(map[string]lockEntry),
	}
}

// Acquire attempts to acquire a named lock.
func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.locks[name]; exists && time.Now().Before(entry.expiry) {
		return "", false, nil
	}

	m.seq++
	token := "mock-" + strconv.Itoa(m.seq)
	m.locks[name] = lockEntry{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

// Release releases a named lock owned by token.
func (m *MockDistributedLock) Release(ctx context.Context, name, token string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name, token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.locks[name]; exists && entry.token == token {
		delete(m.locks, name)
	}
	return nil
}

// Extend extends the TTL of a held lock.
func (m *MockDistributedLock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists || entry.token != token || time.Now().After(entry.expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	entry.expiry = time.Now().Add(ttl)
	m.locks[name] = entry
	m.extends++
	return nil
}

// ExtendCount returns how many extensions succeeded (for test assertions).
func (m *MockDistributedLock) ExtendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extends
}

// Ping checks backend health.
func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld checks if a lock is currently held (for test assertions).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	return exists && time.Now().Before(entry.expiry)
}

// SetLockHeld forces a lock to be held (for test setup).
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locks[name] = lockEntry{token: "external-owner", expiry: time.Now().Add(ttl)}
}
