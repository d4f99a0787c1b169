package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sbilibin2017/gw-coinflip-ledger/docs"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/dbtx"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/handlers"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/memstore"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/metrics"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/middlewares"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/migrations"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/services"
)

const serviceName = "gw-coinflip-ledger"

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-coinflip-ledger API
// @version 1.0.0
// @description Coin-flip betting service with an atomic wager ledger
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// backend is the storage the services run on.
type backend struct {
	tx          services.TxRunner
	userReader  services.UserReader
	userWriter  services.UserWriter
	accounts    accountStore
	wagerWriter services.WagerWriter
	wagerReader services.WagerReader
	drift       services.DriftReader
	snapshot    func(http.Handler) http.Handler // wraps multi-query reads; nil when not needed
	ping        func(ctx context.Context) error
	close       func() error
}

type accountStore interface {
	services.AccountStore
	services.AccountCreator
}

// newPostgresBackend connects to PostgreSQL and applies pending migrations.
func newPostgresBackend(ctx context.Context, cfg config) (*backend, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDB)
	logger.Log.Infow("Connecting to PostgreSQL", "host", cfg.PGHost, "port", cfg.PGPort, "db", cfg.PGDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)

	if err := migrations.Up(dsn); err != nil {
		db.Close()
		return nil, err
	}

	accounts := repositories.NewAccountRepository(db, dbtx.FromContext)
	wagers := repositories.NewWagerReadRepository(db, dbtx.FromContext)

	return &backend{
		tx:          dbtx.NewManager(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}),
		userReader:  repositories.NewUserReadRepository(db),
		userWriter:  repositories.NewUserWriteRepository(db, dbtx.FromContext),
		accounts:    accounts,
		wagerWriter: repositories.NewWagerWriteRepository(db, dbtx.FromContext),
		wagerReader: wagers,
		drift:       repositories.NewAuditRepository(db),
		snapshot:    middlewares.ReadOnlyTxMiddleware(db),
		ping:        db.PingContext,
		close:       db.Close,
	}, nil
}

// newMemoryBackend keeps all state in process memory.
func newMemoryBackend() *backend {
	store := memstore.New()
	return &backend{
		tx:          store,
		userReader:  store.Users(),
		userWriter:  store.Users(),
		accounts:    store.Accounts(),
		wagerWriter: store.Wagers(),
		wagerReader: store.Wagers(),
		drift:       store.Audit(),
		ping:        func(context.Context) error { return nil },
		close:       func() error { return nil },
	}
}

// run initializes the logger, storage, Redis, Kafka, metrics, gRPC health and HTTP servers.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context, cfg config) error {
	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel, serviceName); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infow("Logger initialized", "level", cfg.LogLevel, "version", buildVersion)

	// Storage
	var (
		store *backend
		err   error
	)
	switch cfg.Storage {
	case storageMemory:
		logger.Log.Warn("Using in-memory storage, state is lost on restart")
		store = newMemoryBackend()
	default:
		if store, err = newPostgresBackend(ctx, cfg); err != nil {
			return err
		}
	}
	defer store.close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.New(reg)

	ledgerOpts := []services.LedgerOption{services.WithRecorder(ledgerMetrics)}

	// Connect to Redis
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer rdb.Close()

		cache := repositories.NewBalanceCacheRepository(rdb, time.Duration(cfg.RedisExpSecond)*time.Second)
		ledgerOpts = append(ledgerOpts, services.WithBalanceCache(cache))
	} else {
		logger.Log.Info("REDIS_HOST not set, balance cache disabled")
	}

	// Kafka
	if len(cfg.KafkaBrokers) > 0 {
		writer := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		}
		defer writer.Close()
		ledgerOpts = append(ledgerOpts, services.WithKafkaWriter(writer))
		logger.Log.Infow("Kafka producer initialized", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Initialize JWT service
	tokens := jwt.New(
		jwt.WithSecretKey(cfg.JWTSecretKey),
		jwt.WithExpiration(time.Duration(cfg.JWTExpSecond)*time.Second),
	)

	// Initialize services
	authService := services.NewAuthService(store.tx, store.userReader, store.userWriter, store.accounts, tokens, cfg.StartingBalance)
	ledgerService := services.NewLedgerService(store.tx, store.accounts, store.wagerWriter, store.wagerReader, ledgerOpts...)
	auditService := services.NewAuditService(store.drift, ledgerMetrics)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	// Public routes
	r.Post("/register", handlers.NewRegisterHandler(authService))
	r.Post("/login", handlers.NewLoginHandler(authService))

	// Protected routes with JWT middleware
	r.Group(func(r chi.Router) {
		r.Use(middlewares.AuthMiddleware(tokens))
		r.Get("/balance", handlers.NewGetBalanceHandler(ledgerService))
		r.Post("/game/flip", handlers.NewFlipHandler(ledgerService))
		r.Post("/game/quick-bet", handlers.NewQuickBetHandler(ledgerService))
		r.Group(func(r chi.Router) {
			if store.snapshot != nil {
				r.Use(store.snapshot)
			}
			r.Get("/game/history", handlers.NewHistoryHandler(ledgerService))
		})
	})

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)),
	))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, reg, store.ping)

	// gRPC health service
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("gRPC health listener failed: %w", err)
	}

	// Ledger audit
	scheduler := cron.New()
	if cfg.AuditSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.AuditSchedule, func() {
			auditCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			_, _ = auditService.Reconcile(auditCtx)
		}); err != nil {
			grpcLis.Close()
			return fmt.Errorf("invalid AUDIT_SCHEDULE %q: %w", cfg.AuditSchedule, err)
		}
	}
	scheduler.Start()

	// Graceful shutdown
	errChan := make(chan error, 3)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	go func() {
		logger.Log.Infof("Metrics server listening on %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()
	go func() {
		logger.Log.Infof("gRPC health server listening on %s", grpcLis.Addr())
		if err := grpcSrv.Serve(grpcLis); err != nil {
			errChan <- fmt.Errorf("gRPC health server failed: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping servers...")
	case runErr = <-errChan:
		logger.Log.Errorw("server failed, shutting down", "error", runErr)
	}

	healthSrv.Shutdown()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("metrics server shutdown error", "error", err)
	}
	grpcSrv.GracefulStop()

	logger.Log.Info("Servers stopped gracefully")
	return runErr
}
