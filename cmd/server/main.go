package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"innovate_api/internal/api"
	"innovate_api/internal/api/middleware"
	"innovate_api/internal/app/service"
	"innovate_api/internal/app/worker"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"
	"innovate_api/internal/platform/config"
	"innovate_api/internal/platform/database"
	"innovate_api/internal/platform/events"
	"innovate_api/internal/platform/queue"
)

func main() {
	// 1. Configuration
	config.Load()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("INFO: configuration loaded (env=%s)", cfg.AppEnv)

	// 2. JWT
	security.InitJWT()

	// 3. Database
	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL, database.MigrateUp); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}
	database.Connect()
	defer database.Close()

	// 4. Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()

	// 5. Domain events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("ERROR: failed to close kafka writer: %v", err)
			}
		}()
		publisher = events.NewKafkaPublisher(writer)
		log.Printf("INFO: publishing domain events to kafka topic %s", cfg.KafkaTopic)
	} else {
		log.Println("WARN: KAFKA_BROKERS not set, domain events are discarded")
	}

	// 6. Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	eventRepo := repository.NewPgEventRepository(database.DB)
	teamRepo := repository.NewPgTeamRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	scoringRepo := repository.NewPgScoringRepository(database.DB)
	ticketRepo := repository.NewPgTicketRepository(database.DB)
	tx := database.NewTransactor(database.DB)

	// 7. Caches and queues
	denylist := cache.NewRedisTokenDenylist(queue.RDB)
	lbCache := cache.NewRedisLeaderboardCache(queue.RDB)
	recomputeQueue := queue.NewListQueue(queue.RDB, cfg.LeaderboardQueueName)
	recomputeLock := queue.NewLock(queue.RDB, cfg.LeaderboardLockKey, time.Duration(cfg.LeaderboardLockTTLSeconds)*time.Second)

	// 8. Services
	phaseService := service.NewPhaseService(eventRepo, tx, publisher)
	authService := service.NewAuthService(userRepo, phaseService, denylist)
	userService := service.NewUserService(userRepo, denylist)
	teamService := service.NewTeamService(teamRepo, submissionRepo, tx, phaseService, publisher, cfg.InviteCodeMaxAttempts)
	submissionService := service.NewSubmissionService(submissionRepo, teamRepo, tx, phaseService, publisher)
	leaderboardService := service.NewLeaderboardService(scoringRepo, lbCache, recomputeQueue)
	scoringService := service.NewScoringService(scoringRepo, submissionRepo, userRepo, submissionService, tx, phaseService, leaderboardService, publisher)
	ticketService := service.NewTicketService(ticketRepo, eventRepo, service.MockGateway{}, tx, phaseService, publisher)
	analyticsService := service.NewAnalyticsService(userRepo, teamRepo, submissionRepo, scoringRepo, ticketRepo)

	if cfg.BootstrapAdminEmail != "" {
		if err := authService.EnsureAdmin(context.Background(), cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			log.Fatalf("Bootstrap admin failed: %v", err)
		}
	}

	// 9. Background work
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.EmbeddedWorker {
		leaderboardWorker := worker.NewLeaderboardWorker(recomputeQueue, recomputeLock, leaderboardService)
		go leaderboardWorker.Start(workerCtx)
	} else {
		log.Println("INFO: embedded worker disabled; run cmd/worker for leaderboard recomputes")
	}

	authLimiter := middleware.NewIPRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				authLimiter.Cleanup()
			}
		}
	}()

	// 10. Router & HTTP server
	router := api.NewRouter(api.Dependencies{
		AuthService:        authService,
		UserService:        userService,
		PhaseService:       phaseService,
		TeamService:        teamService,
		SubmissionService:  submissionService,
		ScoringService:     scoringService,
		LeaderboardService: leaderboardService,
		TicketService:      ticketService,
		AnalyticsService:   analyticsService,
		Denylist:           denylist,
		AuthLimiter:        authLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 11. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("INFO: server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop

	log.Println("INFO: shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: server shutdown failed: %v", err)
	}

	log.Println("INFO: server and worker stopped gracefully.")
}
