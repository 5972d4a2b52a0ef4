package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/redis"
)

const (
	oauthStateKeyPrefix = "oauth:state:"

	// Expired and consumed records are kept this long past their TTL so that
	// late callbacks are reported as expired or replayed instead of not found.
	oauthStateGracePeriod = time.Hour
)

// consumeStateScript checks and consumes a state hash in one server-side step.
// ARGV[1] = expected provider, ARGV[2] = now in unix milliseconds.
var consumeStateScript = goredis.NewScript(`
local h = redis.call("HMGET", KEYS[1], "provider", "consumed", "created_at_ms", "ttl_seconds", "user_id", "metadata")
if not h[1] then
	return {"not_found"}
end
if h[1] ~= ARGV[1] then
	return {"provider_mismatch"}
end
if h[2] == "1" then
	return {"consumed"}
end
if tonumber(h[3]) + tonumber(h[4]) * 1000 <= tonumber(ARGV[2]) then
	return {"expired"}
end
redis.call("HSET", KEYS[1], "consumed", "1")
return {"ok", h[5], h[6]}
`)

type redisOAuthStateRepository struct {
	redis *redis.RedisClient
	now   func() time.Time
}

func NewRedisOAuthStateRepository(redisClient *redis.RedisClient) repository.OAuthStateRepository {
	return &redisOAuthStateRepository{
		redis: redisClient,
		now:   time.Now,
	}
}

func (r *redisOAuthStateRepository) Store(ctx context.Context, state *entity.OAuthState) error {
	metadata, err := json.Marshal(state.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state metadata: %w", err)
	}

	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	fields := map[string]interface{}{
		"provider":      string(state.Provider),
		"user_id":       state.UserID,
		"metadata":      string(metadata),
		"created_at_ms": createdAt.UnixMilli(),
		"ttl_seconds":   state.TTLSeconds,
		"consumed":      "0",
	}

	expiry := time.Duration(state.TTLSeconds)*time.Second + oauthStateGracePeriod
	created, err := r.redis.HSetNXWithTTL(ctx, oauthStateKeyPrefix+state.State, fields, expiry)
	if err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	if !created {
		return entity.ErrDuplicateState
	}

	return nil
}

func (r *redisOAuthStateRepository) ValidateAndConsume(ctx context.Context, state string, provider entity.Provider) (*entity.ConsumedState, error) {
	result, err := r.redis.RunScript(ctx, consumeStateScript,
		[]string{oauthStateKeyPrefix + state},
		string(provider),
		strconv.FormatInt(r.now().UnixMilli(), 10),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return parseConsumeResult(result)
}

// parseConsumeResult maps the script reply onto a consumed state or a state error
func parseConsumeResult(result []string) (*entity.ConsumedState, error) {
	if len(result) == 0 {
		return nil, fmt.Errorf("empty reply from consume script")
	}

	switch result[0] {
	case "ok":
		if len(result) != 3 {
			return nil, fmt.Errorf("malformed reply from consume script: %d elements", len(result))
		}
		consumed := &entity.ConsumedState{UserID: result[1]}
		if err := json.Unmarshal([]byte(result[2]), &consumed.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal oauth state metadata: %w", err)
		}
		return consumed, nil
	case "not_found":
		return nil, entity.ErrStateNotFound
	case "provider_mismatch":
		return nil, entity.ErrProviderMismatch
	case "consumed":
		return nil, entity.ErrStateAlreadyConsumed
	case "expired":
		return nil, entity.ErrStateExpired
	default:
		return nil, fmt.Errorf("unexpected reply from consume script: %q", result[0])
	}
}
