// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the civic-consensus engine.

Civic Consensus is the reputation-weighted consensus engine behind a
civic platform: it normalizes per-user activity metrics into
cohort-relative expertise scores, turns those into capped per-
consultation voting weights, and incrementally aggregates weighted
ballots into materialized results with a hash-chained audit ledger.

# Starting the Daemon

The daemon requires a database URL via environment or CLI flag:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -d "postgres://..." -batch 500 -aggregate-every "@every 30s"

It creates the schema, provisions storage partitions, and runs three
scheduled jobs: sub-minute ballot aggregation, a nightly scoring pass,
and daily partition provisioning.

# Inspect Mode

Read-only operator reports:

	go run main.go -inspect status
	go run main.go -inspect profile 42

# Architecture

  - taxonomy: materialized-path category tree, cohort subtree resolution
  - coeff: operator-tunable coefficients behind a bounded TTL cache
  - scoring: cohort percentile normalization into expertise scores
  - weighting: relevance × expertise dot product, capped, ethics-scaled
  - ballot: append-only partitioned vote log
  - aggregate: cursor-driven batch aggregation plus the audit ledger
  - partition: monthly partition lifecycle for ballots and ledger
  - inspect: operator reports
  - models, db, cliparse, testutil: shared types, schema, config, tests

See package documentation for each component.
*/
package main
