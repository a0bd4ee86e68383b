package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"innovate_api/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// LeaderboardCache stores ranked snapshots tagged with the score version they
// were computed from. A snapshot is only usable while its version is current.
type LeaderboardCache interface {
	Version(ctx context.Context) (int64, error)
	BumpVersion(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) (*model.LeaderboardSnapshot, error)
	StoreIfCurrent(ctx context.Context, snap *model.LeaderboardSnapshot) (bool, error)
}

const (
	leaderboardVersionKey  = "leaderboard:version"
	leaderboardSnapshotKey = "leaderboard:snapshot"
)

// KEYS[1] version counter, KEYS[2] snapshot; ARGV[1] snapshot version, ARGV[2] payload.
var storeSnapshotScript = redis.NewScript(`
local current = tonumber(redis.call("get", KEYS[1]) or "0")
if current == tonumber(ARGV[1]) then
    redis.call("set", KEYS[2], ARGV[2])
    return 1
end
return 0
`)

type redisLeaderboardCache struct {
	client *redis.Client
}

func NewRedisLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &redisLeaderboardCache{client: client}
}

func (c *redisLeaderboardCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, leaderboardVersionKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *redisLeaderboardCache) BumpVersion(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, leaderboardVersionKey).Result()
}

func (c *redisLeaderboardCache) Snapshot(ctx context.Context) (*model.LeaderboardSnapshot, error) {
	raw, err := c.client.Get(ctx, leaderboardSnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var snap model.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode leaderboard snapshot: %w", err)
	}
	return &snap, nil
}

func (c *redisLeaderboardCache) StoreIfCurrent(ctx context.Context, snap *model.LeaderboardSnapshot) (bool, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return false, err
	}
	stored, err := storeSnapshotScript.Run(ctx, c.client,
		[]string{leaderboardVersionKey, leaderboardSnapshotKey}, snap.Version, payload).Int64()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}
