package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	webAdapter "urutiq-ledger/internal/adapters/web"
	"urutiq-ledger/internal/app"
	"urutiq-ledger/internal/cache"
	"urutiq-ledger/internal/config"
	"urutiq-ledger/internal/core"
	"urutiq-ledger/internal/db"
	"urutiq-ledger/internal/logging"
)

func main() {
	os.Exit(run())
}

// run wires and serves the API. It returns the process exit code so every
// deferred close runs before main exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Logger settings come from config, so fall back to a default logger here.
		logging.New(logging.Config{}).Error("invalid configuration", zap.Error(err))
		return 1
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = log.Sync() }()

	if cfg.MigrateOnStart {
		changed, err := db.Migrate(cfg.DatabaseURL, db.Up)
		if err != nil {
			log.Error("migration failed", zap.Error(err))
			return 1
		}
		log.Info("migrations applied", zap.Bool("changed", changed))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.Options{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		log.Error("database", zap.Error(err))
		return 1
	}
	defer pool.Close()

	accounts, closeCache := accountDirectory(ctx, cfg, pool, log)
	defer closeCache()

	svc := buildService(cfg, pool, accounts, log)
	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
	if err := serve(ctx, srv, 30*time.Second, log); err != nil {
		log.Error("server", zap.Error(err))
		return 1
	}
	log.Info("server exited")
	return 0
}

// serve runs srv until ctx is done and then shuts it down gracefully. A
// listen failure is returned rather than exiting the process.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// accountDirectory returns the account store, wrapped in the Redis cache when
// REDIS_ADDR is set and reachable.
func accountDirectory(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *zap.Logger) (cache.Accounts, func()) {
	store := core.NewAccountStore(pool)
	if !cfg.CacheEnabled() {
		return store, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, account cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return store, func() {}
	}
	log.Info("account cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.AccountCacheTTL))
	return cache.NewAccountCache(store, rdb, cfg.AccountCacheTTL, log), func() { _ = rdb.Close() }
}

func buildService(cfg *config.Config, pool *pgxpool.Pool, accounts cache.Accounts, log *zap.Logger) app.ApplicationService {
	txm := db.NewTxManager(pool, cfg.TxMaxRetries, log)
	periods := core.NewPeriodLocks(pool)
	ledger := core.NewLedger(pool, txm, periods)
	inventory := core.NewInventoryLedger(pool, txm, log)

	return app.NewAppService(app.Deps{
		Companies: core.NewCompanyStore(pool),
		Accounts:  accounts,
		Periods:   periods,
		Ledger:    ledger,
		Inventory: inventory,
		Posting:   core.NewPostingService(txm, ledger, inventory, accounts, core.NegativeStockPolicy(cfg.NegativeStockPolicy), log),
		Voids:     core.NewVoidEngine(txm, ledger, inventory, log),
		Auditor:   core.NewAuditor(pool),
	})
}
