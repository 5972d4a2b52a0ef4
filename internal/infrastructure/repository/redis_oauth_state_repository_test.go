package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/infrastructure/redis"
)

type stateClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stateClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stateClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedisStateRepo(t *testing.T) (*redisOAuthStateRepository, *miniredis.Miniredis, *stateClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &stateClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	repo := NewRedisOAuthStateRepository(&redis.RedisClient{Client: client}).(*redisOAuthStateRepository)
	repo.now = clock.Now

	return repo, mr, clock
}

func redisState(token string, createdAt time.Time) *entity.OAuthState {
	return &entity.OAuthState{
		State:      token,
		Provider:   entity.ProviderTwitter,
		UserID:     "user-1",
		Metadata:   map[string]string{entity.MetadataCodeVerifier: "verifier-1"},
		CreatedAt:  createdAt,
		TTLSeconds: 600,
	}
}

func TestRedisStateStoreAndConsume(t *testing.T) {
	repo, mr, clock := newRedisStateRepo(t)
	ctx := context.Background()

	if err := repo.Store(ctx, redisState("abc", clock.Now())); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if ttl := mr.TTL(oauthStateKeyPrefix + "abc"); ttl != 600*time.Second+oauthStateGracePeriod {
		t.Fatalf("key TTL = %v, want state TTL plus grace", ttl)
	}

	if err := repo.Store(ctx, redisState("abc", clock.Now())); !errors.Is(err, entity.ErrDuplicateState) {
		t.Fatalf("second Store() error = %v, want ErrDuplicateState", err)
	}

	consumed, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter)
	if err != nil {
		t.Fatalf("ValidateAndConsume() error = %v", err)
	}
	if consumed.UserID != "user-1" || consumed.CodeVerifier() != "verifier-1" {
		t.Fatalf("consumed = %+v", consumed)
	}

	if _, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateAlreadyConsumed) {
		t.Fatalf("replay error = %v, want ErrStateAlreadyConsumed", err)
	}
}

func TestRedisStateRejections(t *testing.T) {
	repo, _, clock := newRedisStateRepo(t)
	ctx := context.Background()

	if _, err := repo.ValidateAndConsume(ctx, "missing", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateNotFound) {
		t.Fatalf("unknown state error = %v, want ErrStateNotFound", err)
	}

	repo.Store(ctx, redisState("abc", clock.Now()))
	if _, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderLinkedIn); !errors.Is(err, entity.ErrProviderMismatch) {
		t.Fatalf("wrong provider error = %v, want ErrProviderMismatch", err)
	}
	// A mismatch must not burn the state
	if _, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); err != nil {
		t.Fatalf("ValidateAndConsume() after mismatch error = %v", err)
	}

	repo.Store(ctx, redisState("late", clock.Now()))
	clock.Advance(599 * time.Second)
	repo.Store(ctx, redisState("edge", clock.Now().Add(-600*time.Second)))

	if _, err := repo.ValidateAndConsume(ctx, "edge", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateExpired) {
		t.Fatalf("state at ttl error = %v, want ErrStateExpired", err)
	}
	if _, err := repo.ValidateAndConsume(ctx, "late", entity.ProviderTwitter); err != nil {
		t.Fatalf("state one second before ttl error = %v", err)
	}
}

func TestRedisStateConsumedReportedBeforeExpired(t *testing.T) {
	repo, _, clock := newRedisStateRepo(t)
	ctx := context.Background()

	repo.Store(ctx, redisState("abc", clock.Now()))
	if _, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); err != nil {
		t.Fatalf("ValidateAndConsume() error = %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := repo.ValidateAndConsume(ctx, "abc", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateAlreadyConsumed) {
		t.Fatalf("expired replay error = %v, want ErrStateAlreadyConsumed", err)
	}

	repo.Store(ctx, redisState("unused", clock.Now()))
	clock.Advance(time.Hour)
	if _, err := repo.ValidateAndConsume(ctx, "unused", entity.ProviderTwitter); !errors.Is(err, entity.ErrStateExpired) {
		t.Fatalf("expired state error = %v, want ErrStateExpired", err)
	}
}

func TestRedisStateConcurrentConsume(t *testing.T) {
	repo, _, clock := newRedisStateRepo(t)
	ctx := context.Background()

	if err := repo.Store(ctx, redisState("race", clock.Now())); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	var wg sync.WaitGroup
	var successes, replays, other int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ValidateAndConsume(ctx, "race", entity.ProviderTwitter)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, entity.ErrStateAlreadyConsumed):
				atomic.AddInt32(&replays, 1)
			default:
				atomic.AddInt32(&other, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || replays != 31 || other != 0 {
		t.Fatalf("successes = %d, replays = %d, other = %d; want 1, 31, 0", successes, replays, other)
	}
}
