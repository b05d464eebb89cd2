// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/danielhkuo/civic-consensus/aggregate"
	"github.com/danielhkuo/civic-consensus/cliparse"
	"github.com/danielhkuo/civic-consensus/coeff"
	"github.com/danielhkuo/civic-consensus/db"
	"github.com/danielhkuo/civic-consensus/inspect"
	"github.com/danielhkuo/civic-consensus/partition"
	"github.com/danielhkuo/civic-consensus/scoring"
	"github.com/danielhkuo/civic-consensus/taxonomy"
	"github.com/danielhkuo/civic-consensus/weighting"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	// Component wiring
	partitions := partition.NewManager(dbConn)
	coeffs := coeff.NewStore(dbConn, cfg.CacheSize, cfg.CacheTTL)
	tax := taxonomy.NewStore(dbConn)
	engine := scoring.NewEngine(dbConn, coeffs, tax)
	calculator := weighting.NewCalculator(dbConn, coeffs, cfg.CacheSize, cfg.CacheTTL)
	pipeline := aggregate.NewPipeline(dbConn)

	// Score upserts invalidate the user's cached expertise vector
	engine.SetOnScoreChanged(calculator.InvalidateUser)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Inspect != "" {
		if err := runInspect(ctx, cfg, dbConn, engine, partitions, pipeline); err != nil {
			slog.Error("inspect failed", "mode", cfg.Inspect, "error", err)
			os.Exit(1)
		}
		return
	}

	// Partitions must exist before the first write of a period
	if err := partitions.EnsureUpcoming(ctx, cfg.PartitionLeadMonths); err != nil {
		slog.Error("partition provisioning failed", "error", err)
		os.Exit(1)
	}

	scheduler := cron.New()

	_, err = scheduler.AddFunc(cfg.AggregateSpec, func() {
		_, err := pipeline.Run(ctx, cfg.BatchSize)
		switch {
		case err == nil:
		case errors.Is(err, aggregate.ErrConcurrentRun):
			slog.Warn("aggregation skipped, another run holds the lock")
		case partition.IsNoPartition(err):
			slog.Error("aggregation halted, missing partition", "error", err)
		case errors.Is(err, context.Canceled):
		default:
			slog.Error("aggregation batch failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("invalid aggregation cadence", "spec", cfg.AggregateSpec, "error", err)
		os.Exit(1)
	}

	_, err = scheduler.AddFunc(cfg.ScoringSpec, func() {
		summary, err := engine.RunScoringPass(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scoring pass failed", "error", err)
			return
		}
		if summary.Failed > 0 {
			slog.Warn("scoring pass had failures", "scored", summary.Scored, "failed", summary.Failed)
		}
	})
	if err != nil {
		slog.Error("invalid scoring cadence", "spec", cfg.ScoringSpec, "error", err)
		os.Exit(1)
	}

	_, err = scheduler.AddFunc(cfg.PartitionSpec, func() {
		if err := partitions.EnsureUpcoming(ctx, cfg.PartitionLeadMonths); err != nil {
			slog.Error("partition provisioning failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("invalid partition cadence", "spec", cfg.PartitionSpec, "error", err)
		os.Exit(1)
	}

	slog.Info("Scheduler running",
		"aggregate", cfg.AggregateSpec, "scoring", cfg.ScoringSpec, "partitions", cfg.PartitionSpec)
	scheduler.Start()

	// Wait for Ctrl-C or SIGTERM, then let in-flight jobs reach their
	// next safe point (jobs check ctx between atomic commits)
	<-ctx.Done()
	slog.Info("Shutting down")
	<-scheduler.Stop().Done()
	slog.Info("Scheduler stopped")
}

func runInspect(ctx context.Context, cfg cliparse.Config, dbConn *sql.DB,
	engine *scoring.Engine, partitions *partition.Manager, pipeline *aggregate.Pipeline) error {

	switch cfg.Inspect {
	case "results":
		return inspect.Results(ctx, dbConn)
	case "profile":
		if len(cfg.Args) != 1 {
			return errors.New("usage: -inspect profile <user-id>")
		}
		userID, err := strconv.ParseInt(cfg.Args[0], 10, 64)
		if err != nil {
			return errors.New("user id must be an integer")
		}
		return inspect.Profile(ctx, engine, userID)
	case "adjustments":
		if len(cfg.Args) != 2 {
			return errors.New("usage: -inspect adjustments <user-id> <domain-code>")
		}
		userID, err := strconv.ParseInt(cfg.Args[0], 10, 64)
		if err != nil {
			return errors.New("user id must be an integer")
		}
		return inspect.Adjustments(ctx, engine, userID, cfg.Args[1])
	case "partitions":
		return inspect.Partitions(ctx, partitions)
	case "ledger":
		return inspect.LedgerTail(ctx, dbConn, 20)
	case "status":
		return inspect.Status(ctx, dbConn, pipeline)
	default:
		return errors.New("unknown inspect mode: " + cfg.Inspect)
	}
}
