package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when the blocking wait timed out.
var ErrEmpty = errors.New("queue empty")

// ListQueue is a FIFO job queue on a Redis list: producers LPUSH, consumers BRPOP.
type ListQueue struct {
	rdb  *redis.Client
	name string
}

func NewListQueue(rdb *redis.Client, name string) *ListQueue {
	return &ListQueue{rdb: rdb, name: name}
}

func (q *ListQueue) Name() string { return q.name }

func (q *ListQueue) Push(ctx context.Context, payload string) error {
	return q.rdb.LPush(ctx, q.name, payload).Err()
}

// Requeue puts a job back at the consuming end so it is retried next.
func (q *ListQueue) Requeue(ctx context.Context, payload string) error {
	return q.rdb.RPush(ctx, q.name, payload).Err()
}

func (q *ListQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return "", ErrEmpty
	}
	return res[1], nil
}
