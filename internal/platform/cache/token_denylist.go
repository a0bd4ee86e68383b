package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist remembers revoked token ids until the token would have expired anyway.
// RevokeUser invalidates every token a user was issued before the given instant.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	RevokeUser(ctx context.Context, userID string, before time.Time, ttl time.Duration) error
	UserRevokedBefore(ctx context.Context, userID string) (time.Time, error)
}

type redisTokenDenylist struct {
	client *redis.Client
}

func NewRedisTokenDenylist(client *redis.Client) TokenDenylist {
	return &redisTokenDenylist{client: client}
}

func (c *redisTokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, "jwt:revoked:"+tokenID, 1, ttl).Err()
}

func (c *redisTokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, "jwt:revoked:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisTokenDenylist) RevokeUser(ctx context.Context, userID string, before time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, "jwt:user-revoked:"+userID, before.Unix(), ttl).Err()
}

// UserRevokedBefore returns the zero time when the user has no standing revocation.
func (c *redisTokenDenylist) UserRevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	val, err := c.client.Get(ctx, "jwt:user-revoked:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}
