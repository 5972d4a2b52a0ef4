package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crosspost-connect/internal/config"
)

var Module = fx.Module("redis",
	fx.Provide(NewRedisClient),
)

type RedisClient struct {
	Client *redis.Client
	logger *zap.Logger
}

func NewRedisClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connected successfully",
		zap.String("addr", addr),
		zap.Int("db", cfg.Redis.DB),
	)

	rc := &RedisClient{
		Client: client,
		logger: logger,
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rc.Close()
		},
	})

	return rc, nil
}

// HSetNXWithTTL writes all fields of a new hash only if the key does not exist
// yet, and sets its expiry in the same transaction. Returns false when the key
// was already present.
func (r *RedisClient) HSetNXWithTTL(ctx context.Context, key string, fields map[string]interface{}, expiration time.Duration) (bool, error) {
	args := append([]interface{}{expiration.Milliseconds()}, flatten(fields)...)
	created, err := createHashScript.Run(ctx, r.Client, []string{key}, args...).Int()
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

// RunScript evaluates a Lua script against the given keys
func (r *RedisClient) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) *redis.Cmd {
	return script.Run(ctx, r.Client, keys, args...)
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

var createHashScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return 1
`)

func flatten(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
