package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func testLocker(t *testing.T, ttl, wait time.Duration) (*ProviderLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewProviderLocker(client, ttl, wait), mr
}

func TestWithProviderLockRunsFn(t *testing.T) {
	locker, mr := testLocker(t, time.Second, 100*time.Millisecond)
	providerID := uuid.New()

	ran := false
	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		ran = true
		if !mr.Exists("lock:provider:" + providerID.String()) {
			t.Error("expected lock key to exist inside critical section")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithProviderLock returned error: %v", err)
	}
	if !ran {
		t.Fatal("critical section did not run")
	}
	if mr.Exists("lock:provider:" + providerID.String()) {
		t.Fatal("lock key not released")
	}
}

func TestWithProviderLockReleasesOnError(t *testing.T) {
	locker, mr := testLocker(t, time.Second, 100*time.Millisecond)
	providerID := uuid.New()

	wantErr := errors.New("boom")
	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
	if mr.Exists("lock:provider:" + providerID.String()) {
		t.Fatal("lock key not released after fn error")
	}
}

func TestWithProviderLockTimesOutWhenHeld(t *testing.T) {
	locker, mr := testLocker(t, 30*time.Second, 80*time.Millisecond)
	providerID := uuid.New()

	// Simulate a foreign holder that never releases within the wait.
	mr.Set("lock:provider:"+providerID.String(), "someone-else")

	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		t.Error("critical section must not run while lock is held")
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
}

func TestWithProviderLockWaitsForRelease(t *testing.T) {
	locker, mr := testLocker(t, 30*time.Second, time.Second)
	providerID := uuid.New()
	key := "lock:provider:" + providerID.String()

	mr.Set(key, "someone-else")
	go func() {
		time.Sleep(60 * time.Millisecond)
		mr.Del(key)
	}()

	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected lock acquisition after release, got %v", err)
	}
}

func TestWithProviderLockDoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := testLocker(t, 50*time.Millisecond, 10*time.Millisecond)
	providerID := uuid.New()
	key := "lock:provider:" + providerID.String()

	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		// Simulate TTL expiry plus takeover by another process.
		mr.Set(key, "new-owner")
		return nil
	})
	if err != nil {
		t.Fatalf("WithProviderLock returned error: %v", err)
	}

	got, getErr := mr.Get(key)
	if getErr != nil || got != "new-owner" {
		t.Fatalf("foreign lock value was disturbed: %q, %v", got, getErr)
	}
}
