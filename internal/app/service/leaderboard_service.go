package service

import (
	"context"
	"errors"
	"log"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"
)

// RecomputeQueue receives a job every time the leaderboard goes stale.
type RecomputeQueue interface {
	Push(ctx context.Context, payload string) error
}

type LeaderboardService struct {
	scoringRepo repository.ScoringRepository
	cache       cache.LeaderboardCache
	queue       RecomputeQueue
	now         func() time.Time
}

func NewLeaderboardService(scoringRepo repository.ScoringRepository, lbCache cache.LeaderboardCache, queue RecomputeQueue) *LeaderboardService {
	return &LeaderboardService{scoringRepo: scoringRepo, cache: lbCache, queue: queue, now: time.Now}
}

func (s *LeaderboardService) compute(ctx context.Context, version int64) (*model.LeaderboardSnapshot, error) {
	aggs, err := s.scoringRepo.TeamAggregates(ctx)
	if err != nil {
		return nil, common.Errorf("failed to aggregate scores: %w", err)
	}
	return &model.LeaderboardSnapshot{
		Version:     version,
		GeneratedAt: s.now().UTC(),
		Entries:     model.RankLeaderboard(aggs),
	}, nil
}

// Leaderboard serves the cached snapshot when it matches the current score
// version and computes from the database otherwise.
func (s *LeaderboardService) Leaderboard(ctx context.Context) (*model.LeaderboardSnapshot, error) {
	version, err := s.cache.Version(ctx)
	if err != nil {
		log.Printf("WARN: leaderboard cache unavailable, reading from database: %v", err)
		return s.compute(ctx, 0)
	}
	snap, err := s.cache.Snapshot(ctx)
	if err == nil && snap.Version == version {
		return snap, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("WARN: failed to read leaderboard snapshot: %v", err)
	}
	return s.compute(ctx, version)
}

// Recompute rebuilds the snapshot for the current version. A snapshot computed
// while another score landed is discarded by the cache rather than stored.
func (s *LeaderboardService) Recompute(ctx context.Context) error {
	version, err := s.cache.Version(ctx)
	if err != nil {
		return err
	}
	if snap, err := s.cache.Snapshot(ctx); err == nil && snap.Version == version {
		return nil
	}
	snap, err := s.compute(ctx, version)
	if err != nil {
		return err
	}
	stored, err := s.cache.StoreIfCurrent(ctx, snap)
	if err != nil {
		return err
	}
	if !stored {
		log.Printf("INFO: leaderboard version moved past %d during recompute, snapshot dropped", version)
	}
	return nil
}

// Invalidate marks the cached leaderboard stale and queues a rebuild.
// Failures only cost freshness of the cache, so they are logged.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	version, err := s.cache.BumpVersion(ctx)
	if err != nil {
		log.Printf("ERROR: failed to bump leaderboard version: %v", err)
		return
	}
	if err := s.queue.Push(ctx, "recompute"); err != nil {
		log.Printf("WARN: failed to queue leaderboard recompute for version %d: %v", version, err)
	}
}
