package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "revoked:"

// RedisRegistry stores one key per revoked id with a TTL equal to the token's
// remaining lifetime, so Redis expires entries on its own.
type RedisRegistry struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// Already expired; nothing can present it successfully any more.
		return false, nil
	}
	added, err := r.client.SetNX(ctx, redisKey(tokenID), expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return added, nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, tokenID string) error {
	if err := r.client.Del(ctx, redisKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("remove revoked token: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: key TTLs already remove expired entries.
func (r *RedisRegistry) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func redisKey(tokenID string) string {
	return redisKeyPrefix + tokenID
}
