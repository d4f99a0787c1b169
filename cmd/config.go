package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

// config holds everything the service reads from the environment.
type config struct {
	AppHost  string
	AppPort  string
	LogLevel string
	Storage  string

	PGHost         string
	PGPort         int
	PGUser         string
	PGPassword     string
	PGDB           string
	PGMaxOpenConns int
	PGMaxIdleConns int

	RedisHost         string // empty disables the balance cache
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisExpSecond    int

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string

	JWTSecretKey string
	JWTExpSecond int

	StartingBalance decimal.Decimal

	MetricsPort    string
	GRPCHealthPort string
	AuditSchedule  string // cron spec, empty disables the audit job
}

// parseConfig loads environment variables from a file and returns
// the application, storage, cache, messaging, auth and ledger configuration.
func parseConfig(path string) (cfg config, err error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}
	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return v, nil
	}

	// Application config
	cfg.AppHost = getEnv("APP_HOST", "localhost")
	cfg.AppPort = getEnv("APP_PORT", "8080")
	cfg.LogLevel = getEnv("APP_LOG_LEVEL", "info")
	cfg.Storage = getEnv("APP_STORAGE", storagePostgres)
	if cfg.Storage != storagePostgres && cfg.Storage != storageMemory {
		return cfg, fmt.Errorf("APP_STORAGE: unknown storage %q", cfg.Storage)
	}

	// PostgreSQL config
	cfg.PGHost = getEnv("POSTGRES_HOST", "localhost")
	cfg.PGUser = getEnv("POSTGRES_USER", "user")
	cfg.PGPassword = getEnv("POSTGRES_PASSWORD", "password")
	cfg.PGDB = getEnv("POSTGRES_DB", "database")
	if cfg.PGPort, err = getInt("POSTGRES_PORT", "5432"); err != nil {
		return
	}
	if cfg.PGMaxOpenConns, err = getInt("POSTGRES_MAX_OPEN_CONNS", "16"); err != nil {
		return
	}
	if cfg.PGMaxIdleConns, err = getInt("POSTGRES_MAX_IDLE_CONNS", "8"); err != nil {
		return
	}

	// Redis config
	cfg.RedisHost = getEnv("REDIS_HOST", "")
	if cfg.RedisPort, err = getInt("REDIS_PORT", "6379"); err != nil {
		return
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", "10"); err != nil {
		return
	}
	if cfg.RedisMinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", "2"); err != nil {
		return
	}
	if cfg.RedisExpSecond, err = getInt("REDIS_EXP_SECOND", "60"); err != nil {
		return
	}

	// Kafka config
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "wagers.settled")

	// JWT config
	cfg.JWTSecretKey = getEnv("JWT_SECRET_KEY", "my_super_secret_key")
	if cfg.JWTExpSecond, err = getInt("JWT_EXP_SECOND", "3600"); err != nil {
		return
	}

	// Ledger config
	if cfg.StartingBalance, err = decimal.NewFromString(getEnv("LEDGER_STARTING_BALANCE", "1000.00")); err != nil {
		err = fmt.Errorf("LEDGER_STARTING_BALANCE: %w", err)
		return
	}
	if cfg.StartingBalance.IsNegative() {
		err = fmt.Errorf("LEDGER_STARTING_BALANCE: must not be negative")
		return
	}

	cfg.MetricsPort = getEnv("METRICS_PORT", "9090")
	cfg.GRPCHealthPort = getEnv("GRPC_HEALTH_PORT", "50051")
	cfg.AuditSchedule = "@every 10m"
	if v, ok := os.LookupEnv("AUDIT_SCHEDULE"); ok {
		cfg.AuditSchedule = strings.TrimSpace(v)
	}

	return
}
