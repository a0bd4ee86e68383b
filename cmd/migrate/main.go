package main

import (
	"flag"
	"log"

	"innovate_api/internal/platform/config"
	"innovate_api/internal/platform/database"
)

func main() {
	flag.Usage = func() {
		log.Println("usage: migrate [up|down]")
	}
	flag.Parse()

	direction := database.MigrateUp
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	config.Load()
	if config.AppConfig.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := database.Migrate(config.AppConfig.DatabaseURL, direction); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}
