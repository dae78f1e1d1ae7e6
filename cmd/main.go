package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"inviterank/tracker/internal/config"
	"inviterank/tracker/internal/handler"
	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/notify"
	"inviterank/tracker/internal/repository"
	"inviterank/tracker/internal/service"
	jwtpkg "inviterank/tracker/pkg/jwt"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to the config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. Open the durable store (PostgreSQL or in-memory)
	var groupRepo repository.GroupRepository
	var inviteRepo repository.InviteRepository
	switch cfg.Store.Backend {
	case "postgres":
		db, err := config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		if cfg.Database.Postgres.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				logger.Fatal("failed to auto-migrate", zap.Error(err))
			}
			logger.Info("database migration completed")
		}
		groupRepo = repository.NewPGGroupRepository(db)
		inviteRepo = repository.NewPGInviteRepository(db)
		logger.Info("using PostgreSQL store")
	case "memory":
		groupRepo = repository.NewMemoryGroupRepository()
		inviteRepo = repository.NewMemoryInviteRepository()
		logger.Warn("using in-memory store, counters are lost on restart")
	default:
		logger.Fatal("unknown store backend", zap.String("backend", cfg.Store.Backend))
	}

	// Redis is shared by the state store and the notifier, connected on first use.
	var redisClient *redis.Client
	getRedis := func() *redis.Client {
		if redisClient == nil {
			redisClient, err = config.NewRedisClient(cfg.Database.Redis)
			if err != nil {
				logger.Fatal("failed to connect to redis", zap.Error(err))
			}
		}
		return redisClient
	}

	// 4. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		stateStore = repository.NewRedisStateStore(getRedis(), "inviterank:")
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 5. Initialize notifier
	var notifier notify.Notifier
	switch cfg.Notify.Backend {
	case "redis":
		notifier = notify.Multi(
			notify.NewRedisNotifier(getRedis(), cfg.Notify.Channel),
			notify.NewLogNotifier(logger),
		)
		logger.Info("publishing notices to redis", zap.String("channel", cfg.Notify.Channel))
	case "log":
		notifier = notify.NewLogNotifier(logger)
	default:
		logger.Fatal("unknown notify backend", zap.String("backend", cfg.Notify.Backend))
	}

	// 6. Initialize services
	registry := service.NewGroupRegistry(groupRepo, logger)
	counterReader := service.NewCounterReader(inviteRepo)
	leaderboard := service.NewLeaderboardCache(counterReader, stateStore, service.LeaderboardOptions{
		Size:           cfg.Invite.LeaderboardSize,
		StalenessBound: cfg.Invite.StalenessBound,
	}, logger)
	counters := service.NewCounterStore(inviteRepo, registry, leaderboard, service.CounterOptions{
		MaxRetries:     cfg.Invite.MaxRetries,
		RetryBackoff:   cfg.Invite.RetryBackoff,
		ReconcileGrace: cfg.Invite.ReconcileGrace,
		ReconcileBatch: cfg.Invite.ReconcileBatch,
	}, logger)
	gate := service.NewAccessGate(registry, counterReader)
	admins := service.NewAdminDirectory(stateStore, cfg.Invite.AdminListTTL, logger)
	engine := service.NewEngine(service.EngineDeps{
		Registry:    registry,
		Counters:    counters,
		Gate:        gate,
		Leaderboard: leaderboard,
		Stats:       service.NewStatsAggregator(inviteRepo, counterReader, cfg.Invite.StatsWindow),
		Notifier:    notifier,
		Admins:      admins,
	}, service.EngineOptions{
		BotUserID:      cfg.Bot.UserID,
		BlockNoticeTTL: cfg.Invite.BlockNoticeTTL,
	}, logger)

	// 7. Start the reconciler
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	reconciler := service.NewReconciler(counters, cfg.Invite.ReconcileInterval, logger)
	go reconciler.Run(rootCtx)

	// 8. Initialize JWT manager and handlers
	if cfg.JWT.SigningKey == "" {
		logger.Fatal("jwt.signing_key must be set")
	}
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	eventHandler := handler.NewEventHandler(engine, admins)
	groupHandler := handler.NewGroupHandler(engine, gate)
	adminHandler := handler.NewAdminHandler(registry, reconciler, logger)

	// 9. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, eventHandler, groupHandler, adminHandler)

	// 10. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 11. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("server exited gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
