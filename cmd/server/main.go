// Package main is the entry point for the Fish-in-Water auction API server.
// It wires together the auction, bid, and lifecycle services and starts the
// HTTP server alongside the WebSocket hub and the sweep scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver

	"github.com/ljhyeon/Fish-in-Water/internal/api"
	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/livebid"
	"github.com/ljhyeon/Fish-in-Water/internal/repository"
	"github.com/ljhyeon/Fish-in-Water/internal/scheduler"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
	"github.com/ljhyeon/Fish-in-Water/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // .env is optional; real env wins
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting fish-in-water auction server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Time authority ─────────────────────────────────────────────────────
	clk, err := clock.New(cfg.Auction.Timezone)
	if err != nil {
		logger.Error("invalid auction timezone", "err", err)
		os.Exit(1)
	}

	// ── 3. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 4. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 5. Live bid store ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := livebid.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	liveStore := livebid.New(rdb)
	logger.Info("live bid store connected", "addr", cfg.Redis.Addr)

	// ── 6. Repositories + services ────────────────────────────────────────────
	auctionRepo := repository.NewAuctionRepository(db)
	bidLogRepo := repository.NewBidLogRepository(db)

	auctionSvc := service.NewAuctionService(auctionRepo, clk, logger)
	bidSvc := service.NewBidService(liveStore, bidLogRepo, auctionRepo, clk, cfg, logger)
	lifecycleSvc := service.NewLifecycleService(auctionRepo, bidLogRepo, liveStore, clk, logger)

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(allowedOrigins, logger)
	go hub.Run()
	go func() {
		if err := hub.Pump(ctx, liveStore); err != nil && ctx.Err() == nil {
			logger.Error("live update pump stopped", "err", err)
		}
	}()
	logger.Info("websocket hub started")

	// ── 8. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New(lifecycleSvc, liveStore, cfg, logger)
	sched.Start(ctx)

	// ── 9. HTTP router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuctionSvc:   auctionSvc,
		BidSvc:       bidSvc,
		LifecycleSvc: lifecycleSvc,
		Sweeps:       sched,
		Hub:          hub,
		Clk:          clk,
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	_ = rdb.Close()
	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
