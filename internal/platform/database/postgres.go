package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"innovate_api/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

func Connect() {
	var err error
	DB, err = Open(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}

	if err = PingWithRetry(context.Background(), DB, connectAttempts, connectBackoff); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	log.Println("INFO: Successfully connected to PostgreSQL database")
}

// Open returns a pgx-backed pool configured with the service's limits.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// PingWithRetry doubles the wait after every failed ping.
func PingWithRetry(ctx context.Context, db *sql.DB, attempts int, backoff time.Duration) error {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Printf("WARN: database ping %d/%d failed: %v; retrying in %s", i, attempts, lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

func Close() {
	if DB != nil {
		DB.Close()
		log.Println("INFO: Database connection closed.")
	}
}
