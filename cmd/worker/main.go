// Command worker runs only the leaderboard recompute loop, for deployments
// that start the API with EMBEDDED_WORKER=false.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"innovate_api/internal/app/service"
	"innovate_api/internal/app/worker"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"
	"innovate_api/internal/platform/config"
	"innovate_api/internal/platform/database"
	"innovate_api/internal/platform/queue"
)

func main() {
	config.Load()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	database.Connect()
	defer database.Close()
	queue.ConnectRedis()
	defer queue.CloseRedis()

	recomputeQueue := queue.NewListQueue(queue.RDB, cfg.LeaderboardQueueName)
	recomputeLock := queue.NewLock(queue.RDB, cfg.LeaderboardLockKey, time.Duration(cfg.LeaderboardLockTTLSeconds)*time.Second)
	leaderboardService := service.NewLeaderboardService(
		repository.NewPgScoringRepository(database.DB),
		cache.NewRedisLeaderboardCache(queue.RDB),
		recomputeQueue,
	)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewLeaderboardWorker(recomputeQueue, recomputeLock, leaderboardService).Start(ctx)
	}()

	<-sigs
	log.Println("INFO: shutdown signal received")
	cancel()

	wg.Wait()
	log.Println("INFO: worker exited cleanly")
}
