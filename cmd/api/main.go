package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/cache"
	"github.com/aman-zulfiqar/swap-ledger/internal/config"
	"github.com/aman-zulfiqar/swap-ledger/internal/flags"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/metrics"
	"github.com/aman-zulfiqar/swap-ledger/internal/pool"
	"github.com/aman-zulfiqar/swap-ledger/internal/server"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/aman-zulfiqar/swap-ledger/internal/transfer"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the ledger API server
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	engine, err := ledger.NewEngine(
		ledger.WithFeeSchedule(cfg.FeeSchedule()),
		ledger.WithRewardToken(cfg.RewardToken),
		ledger.WithPair(cfg.PoolTokenA, cfg.PoolTokenB),
	)
	if err != nil {
		logger.WithError(err).Fatal("invalid ledger settings")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := pool.Deps{
		Engine:    engine,
		Transfers: transfer.NewLogTransferer(logger),
		Admin:     cfg.AdminAddress,
		Metrics:   metrics.New(reg),
		Logger:    logger,
	}

	// Redis backs state snapshots, the pause flag mirror and event fan-out
	var flagStore *flags.Store
	if cfg.StateBackend == config.BackendRedis {
		rclient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer func() { _ = rclient.Close() }()
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}

		stateStore, err := cache.NewRedisStateStore(rclient, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create state store")
		}
		flagStore, err = flags.NewStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create flags store")
		}
		deps.Store = stateStore
		deps.Flags = flagStore
		deps.Publisher = cache.NewPubSubManagerFromClient(rclient, logger)
	} else {
		logger.Warn("using in-memory state, ledger is lost on restart")
		deps.Store = storage.NewMemoryStore()
	}

	// Event history is optional
	if cfg.ClickHouseAddr != "" {
		history, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() { _ = history.Close() }()
		if err := history.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to prepare event history")
		}
		deps.History = history
	}

	svc, err := pool.New(ctx, deps)
	if err != nil {
		logger.WithError(err).Fatal("failed to start pool service")
	}

	h := &server.Handlers{
		Pool:    svc,
		Flags:   flagStore,
		DevMode: cfg.DevMode,
		Logger:  logger,
		Timeout: cfg.RequestTimeout,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:          cfg.APIAddr,
			DevMode:       cfg.DevMode,
			APIKey:        cfg.APIKey,
			SwapRateLimit: cfg.SwapRateLimit,
			SwapRateBurst: cfg.SwapRateBurst,
			Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	tokenA, tokenB, _ := engine.Pair(svc.Snapshot())
	fees := engine.Fees()
	logger.WithFields(logrus.Fields{
		"addr":         cfg.APIAddr,
		"backend":      cfg.StateBackend,
		"admin":        svc.Snapshot().Admin,
		"pair":         tokenA + "/" + tokenB,
		"reward_token": engine.RewardToken(),
		"fees":         fmt.Sprintf("%d+%d/%d", fees.ProtocolFee, fees.LPFee, fees.Denominator),
	}).Info("ledger api starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer waitCancel()
	if err := srv.WaitClosed(waitCtx); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
