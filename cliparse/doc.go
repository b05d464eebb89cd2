// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags

	-d               Database URL
	-aggregate-every Aggregation cadence (cron spec)
	-score-at        Scoring pass cadence (cron spec)
	-partition-at    Partition provisioning cadence (cron spec)
	-batch           Max ballots per aggregation batch
	-cache-size      Max entries per in-process cache
	-cache-ttl       Cache entry time-to-live
	-partition-lead  Months of partitions provisioned ahead
	-inspect         Run a read-only report and exit

# Environment Variables

Flags fall back to environment variables:

	DATABASE_URL          → -d
	AGGREGATE_SPEC        → -aggregate-every (default "@every 30s")
	SCORING_SPEC          → -score-at       (default "0 3 * * *")
	PARTITION_SPEC        → -partition-at   (default "@daily")
	AGGREGATE_BATCH_SIZE  → -batch          (default 500)
	CACHE_SIZE            → -cache-size     (default 1024)
	CACHE_TTL             → -cache-ttl      (default 30s)
	PARTITION_LEAD_MONTHS → -partition-lead (default 1)

CLI flags take precedence over environment variables. DATABASE_URL is
the only required setting.
*/
package cliparse
