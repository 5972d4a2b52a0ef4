package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crosspost-connect/internal/domain/entity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newState(token string) *entity.OAuthState {
	return &entity.OAuthState{
		State:      token,
		Provider:   entity.ProviderTwitter,
		UserID:     "user-1",
		Metadata:   map[string]string{entity.MetadataCodeVerifier: "verifier"},
		TTLSeconds: 600,
	}
}

func TestOAuthStateStoreConsumeOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	store := NewOAuthStateStoreWithClock(clock.Now)
	ctx := context.Background()

	if err := store.Store(ctx, newState("abc")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	consumed, err := store.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter)
	if err != nil {
		t.Fatalf("ValidateAndConsume() error = %v", err)
	}
	if consumed.UserID != "user-1" || consumed.CodeVerifier() != "verifier" {
		t.Fatalf("ValidateAndConsume() = %+v", consumed)
	}

	if _, err := store.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateAlreadyConsumed) {
		t.Fatalf("second ValidateAndConsume() error = %v, want ErrStateAlreadyConsumed", err)
	}

	clock.Advance(time.Hour)
	if _, err := store.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateAlreadyConsumed) {
		t.Fatalf("delayed replay error = %v, want ErrStateAlreadyConsumed", err)
	}
}

func TestOAuthStateStoreErrors(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	store := NewOAuthStateStoreWithClock(clock.Now)
	ctx := context.Background()

	if err := store.Store(ctx, newState("abc")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := store.Store(ctx, newState("abc")); !errors.Is(err, entity.ErrDuplicateState) {
		t.Fatalf("duplicate Store() error = %v", err)
	}

	if _, err := store.ValidateAndConsume(ctx, "missing", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateNotFound) {
		t.Fatalf("missing state error = %v", err)
	}
	if _, err := store.ValidateAndConsume(ctx, "abc", entity.ProviderLinkedIn); !errors.Is(err, entity.ErrProviderMismatch) {
		t.Fatalf("provider mismatch error = %v", err)
	}

	clock.Advance(600 * time.Second)
	if _, err := store.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateExpired) {
		t.Fatalf("expired state error = %v", err)
	}
}

func TestOAuthStateStoreConcurrentConsume(t *testing.T) {
	store := NewOAuthStateStoreWithClock(time.Now)
	ctx := context.Background()

	if err := store.Store(ctx, newState("race")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	var wg sync.WaitGroup
	var successes, replays int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ValidateAndConsume(ctx, "race", entity.ProviderTwitter)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, entity.ErrStateAlreadyConsumed):
				atomic.AddInt32(&replays, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || replays != 31 {
		t.Fatalf("successes = %d, replays = %d; want 1 and 31", successes, replays)
	}
}
