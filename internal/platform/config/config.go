package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DatabaseURL    string
	MigrateOnStart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LeaderboardQueueName      string
	LeaderboardLockKey        string
	LeaderboardLockTTLSeconds int
	EmbeddedWorker            bool

	KafkaBrokers []string
	KafkaTopic   string

	CORSAllowedOrigins []string
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string

	InviteCodeMaxAttempts int
}

var AppConfig *Config

const defaultJWTSecret = "defaultsecret"

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
}

// FromEnv builds a Config from the current process environment without touching AppConfig.
func FromEnv() *Config {
	return &Config{
		AppEnv:                    getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		APIPort:                   getEnv("PORT", "8080"),
		JWTKey:                    []byte(getEnv("JWT_SECRET", defaultJWTSecret)),
		JWTExp:                    time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		MigrateOnStart:            getEnvAsBool("MIGRATE_ON_START", false),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvAsInt("REDIS_DB", 0),
		LeaderboardQueueName:      getEnv("LEADERBOARD_QUEUE_NAME", "leaderboard_recompute_queue"),
		LeaderboardLockKey:        getEnv("LEADERBOARD_LOCK_KEY", "leaderboard_recompute_lock"),
		LeaderboardLockTTLSeconds: getEnvAsInt("LEADERBOARD_LOCK_TTL_SECONDS", 30),
		EmbeddedWorker:            getEnvAsBool("EMBEDDED_WORKER", true),
		KafkaBrokers:              getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:                getEnv("KAFKA_TOPIC", "innovate.events"),
		CORSAllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AuthRateLimitRPS:          getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 5),
		AuthRateLimitBurst:        getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),
		BootstrapAdminEmail:       getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:    getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		BootstrapAdminName:        getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		InviteCodeMaxAttempts:     getEnvAsInt("INVITE_CODE_MAX_ATTEMPTS", 10),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate reports every missing or unsafe setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.IsProduction() && string(c.JWTKey) == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWTExp <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_HOURS must be positive"))
	}
	if c.InviteCodeMaxAttempts < 1 {
		errs = append(errs, errors.New("INVITE_CODE_MAX_ATTEMPTS must be at least 1"))
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
