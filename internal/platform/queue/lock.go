package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Lock is a single-holder Redis lock (SET NX PX) released with a compare-and-delete.
type Lock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewLock(rdb *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: key, ttl: ttl}
}

// Acquire returns the holder token when the lock was taken.
func (l *Lock) Acquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release deletes the lock only if token still owns it. It reports false when
// the lock had already expired or been taken over.
func (l *Lock) Release(ctx context.Context, token string) (bool, error) {
	deleted, err := releaseLockScript.Run(ctx, l.rdb, []string{l.key}, token).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}
