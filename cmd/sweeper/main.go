// Package main is a one-shot lifecycle sweeper for operations use: it runs a
// single lease-guarded sweep (or a targeted activate/close) and exits.  The
// server runs the same sweep on a schedule; this binary exists for cron
// setups and manual intervention.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/livebid"
	"github.com/ljhyeon/Fish-in-Water/internal/repository"
	"github.com/ljhyeon/Fish-in-Water/internal/scheduler"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

func main() {
	activateID := flag.String("activate", "", "activate this auction id instead of sweeping")
	closeID := flag.String("close", "", "close this auction id instead of sweeping")
	timeout := flag.Duration("timeout", 30*time.Second, "overall run timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	clk, err := clock.New(cfg.Auction.Timezone)
	if err != nil {
		fatal(logger, "invalid auction timezone", err)
	}

	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		fatal(logger, "database connection failed", err)
	}
	defer db.Close()

	rdb, err := livebid.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		fatal(logger, "redis connection failed", err)
	}
	defer rdb.Close()
	liveStore := livebid.New(rdb)

	auctionRepo := repository.NewAuctionRepository(db)
	bidLogRepo := repository.NewBidLogRepository(db)
	lifecycleSvc := service.NewLifecycleService(auctionRepo, bidLogRepo, liveStore, clk, logger)

	switch {
	case *activateID != "":
		id := mustParseID(logger, *activateID)
		if err := lifecycleSvc.Activate(ctx, id); err != nil {
			fatal(logger, "activate failed", err)
		}
		fmt.Printf("activated %s\n", id)

	case *closeID != "":
		id := mustParseID(logger, *closeID)
		if err := lifecycleSvc.Close(ctx, id); err != nil {
			fatal(logger, "close failed", err)
		}
		fmt.Printf("closed %s\n", id)

	default:
		sched := scheduler.New(lifecycleSvc, liveStore, cfg, logger)
		report, err := sched.RunNow(ctx)
		if err != nil {
			fatal(logger, "sweep failed", err)
		}
		if report.Skipped {
			fmt.Println("sweep: skipped, lease held by another sweeper")
			return
		}
		fmt.Printf("sweep: activated=%d closed=%d failed=%d\n",
			len(report.Activated), len(report.Closed), len(report.Failures))
		for id, ferr := range report.Failures {
			fmt.Printf("  failed %s: %v\n", id, ferr)
		}
		if len(report.Failures) > 0 {
			os.Exit(1)
		}
	}
}

func mustParseID(logger *slog.Logger, s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		fatal(logger, "invalid auction id", err)
	}
	return id
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
