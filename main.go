package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gallery-router/internal/auth"
	"gallery-router/internal/cache"
	"gallery-router/internal/common/logging"
	"gallery-router/internal/config"
	"gallery-router/internal/discovery"
	"gallery-router/internal/flush"
	"gallery-router/internal/handlers"
	"gallery-router/internal/keys"
	"gallery-router/internal/redis"
	"gallery-router/internal/resolver"
	"gallery-router/internal/rules"
	"gallery-router/internal/scheduler"
	"gallery-router/internal/server"
	"gallery-router/internal/storage"
	"gallery-router/internal/taxonomy"

	// Storage backends register themselves with the factory.
	_ "gallery-router/internal/storage/postgres"
	_ "gallery-router/internal/storage/sqlite"
)

const keyNamespace = "gallery"

func main() {
	godotenv.Load()

	cfg := config.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", err)
		os.Exit(1)
	}

	store, err := storage.Open(storage.FactoryConfig{
		Type:     cfg.DatabaseType,
		Path:     cfg.DatabasePath,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		Database: cfg.PostgresDB,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		SSLMode:  cfg.PostgresSSLMode,
	})
	if err != nil {
		logger.Error("storage initialization failed", err)
		os.Exit(1)
	}
	defer store.Close()

	// Redis is optional: without it, caches are in-process and the routing
	// table lives only in this instance's dispatcher.
	var rdb *redis.Client
	var sharedCache cache.Cache
	if cfg.RedisAddress != "" {
		db, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)

		rdb, err = redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
			PoolSize: poolSize,
		})
		if err != nil {
			logger.Warn("redis unavailable, using in-process caches", logging.Err(err))
			rdb = nil
		} else {
			defer rdb.Close()
			sharedCache = cache.NewRedisCache(rdb.Underlying(), keyNamespace)
		}
	}
	if sharedCache == nil {
		sharedCache = cache.NewLocalCache(cfg.ResolutionTTL, 10*time.Minute)
	}

	keygen := keys.NewGenerator(keyNamespace)

	taxonomyClient, err := taxonomy.NewClient(taxonomy.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
	})
	if err != nil {
		logger.Error("gallery API client initialization failed", err)
		os.Exit(1)
	}

	res := resolver.New(taxonomyClient, sharedCache, keygen, cfg.ResolutionTTL, logger)
	discoverer := discovery.New(store, sharedCache, keygen, cfg.EmbedMarker, cfg.ContentScanTTL, logger)
	compiler := rules.NewCompiler(store, logger)
	dispatcher := rules.NewDispatcher(rules.NewRegistry())
	flusher := flush.New(store, discoverer, compiler, dispatcher, rdb, sharedCache, logger)

	ctx := context.Background()

	authHandler := auth.New(store, []byte(cfg.JWTSecret))
	if err := authHandler.EnsureAdminPassword(ctx, cfg.AdminPassword); err != nil {
		logger.Error("admin password bootstrap failed", err)
		os.Exit(1)
	}

	if err := flusher.Bootstrap(ctx); err != nil {
		logger.Error("initial routing table publish failed", err)
		os.Exit(1)
	}

	sched, err := scheduler.New(cfg.FlushSchedule, flusher, logger)
	if err != nil {
		logger.Error("invalid flush schedule", err, logging.String("schedule", cfg.FlushSchedule))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	h := handlers.New(store, dispatcher, res, discoverer, flusher, authHandler, rdb, cfg, logger)

	srv := server.New(h.Router(), cfg.Port, cfg.TLSCert, cfg.TLSKey)
	errCh := srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", err)
	case sig := <-quit:
		logger.Info("shutting down", logging.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", err)
	}
}
