package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_Acquire_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	token, acquired, err := lock.Acquire(ctx, "chat:1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}
	if !strings.HasPrefix(token, lock.OwnerID()+":") {
		t.Errorf("expected token prefixed by owner id, got %s", token)
	}
}

func TestLock_Acquire_AlreadyHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	if _, acquired, _ := lock.Acquire(ctx, "chat:1", 10*time.Second); !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	// Same instance cannot re-acquire (not reentrant)
	_, acquired, err := lock.Acquire(ctx, "chat:1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second acquire to fail")
	}
}

func TestLock_Release_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	token, _, err := lock.Acquire(ctx, "chat:1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lock.Release(ctx, "chat:1", token); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}

	if _, acquired, _ := lock.Acquire(ctx, "chat:1", 10*time.Second); !acquired {
		t.Error("expected to acquire lock after release")
	}
}

func TestLock_Release_StaleToken(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	stale, _, _ := lock.Acquire(ctx, "chat:1", 10*time.Second)
	_ = lock.Release(ctx, "chat:1", stale)
	current, acquired, _ := lock.Acquire(ctx, "chat:1", 10*time.Second)
	if !acquired {
		t.Fatal("expected reacquire")
	}

	// A stale token from the same instance must not release the new holder
	if err := lock.Release(ctx, "chat:1", stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, acquired, _ := lock.Acquire(ctx, "chat:1", 10*time.Second); acquired {
		t.Error("expected lock to still be held by the current token")
	}

	if err := lock.Release(ctx, "chat:1", current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)

	if err := lock.Release(context.Background(), "chat:1", "nobody"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	token, _, _ := lock.Acquire(ctx, "chat:1", time.Second)
	if err := lock.Extend(ctx, "chat:1", token, 10*time.Second); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}
	if err := lock.Extend(ctx, "chat:1", "other-token", 10*time.Second); err == nil {
		t.Error("expected error when extending with a foreign token")
	}
	if err := lock.Extend(ctx, "chat:2", token, 10*time.Second); err == nil {
		t.Error("expected error when extending an unheld lock")
	}
}

func TestLock_Ping(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
