// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string

	// Scheduler cadences (robfig/cron specs)
	AggregateSpec string
	ScoringSpec   string
	PartitionSpec string

	// Aggregation batch cap
	BatchSize int

	// Bounded-cache tuning
	CacheSize int
	CacheTTL  time.Duration

	// How many months of partitions to provision ahead of now
	PartitionLeadMonths int

	// Inspect mode: run one read-only report and exit
	Inspect string

	// Positional arguments left after flag parsing
	Args []string
}

// ParseFlags validates flags with environment-variable fallback
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("civic-consensus", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.AggregateSpec, "aggregate-every", "", "Aggregation cadence (cron spec)")
	fs.StringVar(&cfg.ScoringSpec, "score-at", "", "Scoring pass cadence (cron spec)")
	fs.StringVar(&cfg.PartitionSpec, "partition-at", "", "Partition provisioning cadence (cron spec)")
	fs.IntVar(&cfg.BatchSize, "batch", 0, "Max ballots per aggregation batch")
	fs.IntVar(&cfg.CacheSize, "cache-size", 0, "Max entries per in-process cache")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 0, "Cache entry time-to-live")
	fs.IntVar(&cfg.PartitionLeadMonths, "partition-lead", 0, "Months of partitions to keep provisioned ahead")
	fs.StringVar(&cfg.Inspect, "inspect", "", "Run a read-only report (results|profile|adjustments|partitions|ledger|status) and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()

	// Fall back to environment variables
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.AggregateSpec == "" {
		cfg.AggregateSpec = envOr("AGGREGATE_SPEC", "@every 30s")
	}
	if cfg.ScoringSpec == "" {
		cfg.ScoringSpec = envOr("SCORING_SPEC", "0 3 * * *")
	}
	if cfg.PartitionSpec == "" {
		cfg.PartitionSpec = envOr("PARTITION_SPEC", "@daily")
	}

	if cfg.BatchSize == 0 {
		n, err := envInt("AGGREGATE_BATCH_SIZE", 500)
		if err != nil {
			return Config{}, errors.New("invalid AGGREGATE_BATCH_SIZE env variable")
		}
		cfg.BatchSize = n
	}
	if cfg.BatchSize < 1 {
		return Config{}, errors.New("batch size must be at least 1")
	}

	if cfg.CacheSize == 0 {
		n, err := envInt("CACHE_SIZE", 1024)
		if err != nil {
			return Config{}, errors.New("invalid CACHE_SIZE env variable")
		}
		cfg.CacheSize = n
	}
	if cfg.CacheSize < 1 {
		return Config{}, errors.New("cache size must be at least 1")
	}

	if cfg.CacheTTL == 0 {
		if ttlStr := os.Getenv("CACHE_TTL"); ttlStr != "" {
			ttl, err := time.ParseDuration(ttlStr)
			if err != nil {
				return Config{}, errors.New("invalid CACHE_TTL env variable")
			}
			cfg.CacheTTL = ttl
		} else {
			cfg.CacheTTL = 30 * time.Second
		}
	}

	if cfg.PartitionLeadMonths == 0 {
		n, err := envInt("PARTITION_LEAD_MONTHS", 1)
		if err != nil {
			return Config{}, errors.New("invalid PARTITION_LEAD_MONTHS env variable")
		}
		cfg.PartitionLeadMonths = n
	}
	if cfg.PartitionLeadMonths < 1 {
		return Config{}, errors.New("partition lead must be at least 1 month")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
