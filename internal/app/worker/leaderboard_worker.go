package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"innovate_api/internal/platform/queue"
)

type jobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Requeue(ctx context.Context, payload string) error
}

type locker interface {
	Acquire(ctx context.Context) (string, bool, error)
	Release(ctx context.Context, token string) (bool, error)
}

type recomputer interface {
	Recompute(ctx context.Context) error
}

// LeaderboardWorker rebuilds the cached leaderboard whenever a score lands.
// Only one recompute runs at a time across all server instances.
type LeaderboardWorker struct {
	jobs        jobSource
	lock        locker
	leaderboard recomputer

	popTimeout  time.Duration
	busyBackoff time.Duration
	errBackoff  time.Duration
}

func NewLeaderboardWorker(jobs jobSource, lock locker, leaderboard recomputer) *LeaderboardWorker {
	return &LeaderboardWorker{
		jobs:        jobs,
		lock:        lock,
		leaderboard: leaderboard,
		popTimeout:  5 * time.Second,
		busyBackoff: 500 * time.Millisecond,
		errBackoff:  5 * time.Second,
	}
}

func (w *LeaderboardWorker) Start(ctx context.Context) {
	log.Println("INFO: leaderboard worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: leaderboard worker stopping...")
			return
		default:
		}

		job, err := w.jobs.Pop(ctx, w.popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Printf("ERROR: failed to pop leaderboard job: %v", err)
			w.sleep(ctx, w.errBackoff)
			continue
		}
		w.processWithLock(ctx, job)
	}
}

func (w *LeaderboardWorker) processWithLock(ctx context.Context, job string) {
	token, ok, err := w.lock.Acquire(ctx)
	if err != nil {
		log.Printf("ERROR: failed to acquire leaderboard lock: %v", err)
		w.requeue(ctx, job)
		w.sleep(ctx, w.errBackoff)
		return
	}
	if !ok {
		// Another instance is recomputing; it may finish before our version, so retry later.
		w.sleep(ctx, w.busyBackoff)
		w.requeue(ctx, job)
		return
	}

	defer func() {
		released, err := w.lock.Release(context.Background(), token)
		if err != nil {
			log.Printf("ERROR: failed to release leaderboard lock: %v", err)
		} else if !released {
			log.Printf("WARN: leaderboard lock expired before release")
		}
	}()

	if err := w.leaderboard.Recompute(ctx); err != nil {
		log.Printf("ERROR: leaderboard recompute failed: %v", err)
	}
}

func (w *LeaderboardWorker) requeue(ctx context.Context, job string) {
	if err := w.jobs.Requeue(ctx, job); err != nil {
		log.Printf("ERROR: failed to re-queue leaderboard job: %v", err)
	}
}

func (w *LeaderboardWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
