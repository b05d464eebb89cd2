// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the consensus engine.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The ballot and ledger_entry tables are declared as range-partitioned
// parents; monthly child partitions are created separately by the
// partition lifecycle manager. A write that lands in a month with no
// provisioned partition fails with SQLSTATE 23514.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Taxonomy: materialized-path category tree
CREATE TABLE IF NOT EXISTS category (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    parent_id BIGINT REFERENCES category(id),
    depth INT NOT NULL,
    path TEXT NOT NULL,
    CHECK (depth >= 0)
);

-- text_pattern_ops so subtree lookups (path LIKE 'prefix.%') stay indexed
CREATE INDEX IF NOT EXISTS idx_category_path ON category(path text_pattern_ops);
CREATE INDEX IF NOT EXISTS idx_category_parent_id ON category(parent_id);

-- Operator-tunable scoring coefficients
CREATE TABLE IF NOT EXISTS score_coefficient (
    name TEXT NOT NULL,
    field_scope TEXT NOT NULL DEFAULT '',
    value NUMERIC(19,4) NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (name, field_scope)
);

-- Raw per-axis activity metrics, the inputs to percentile ranking
CREATE TABLE IF NOT EXISTS user_axis_metric (
    user_id BIGINT NOT NULL,
    category_id BIGINT NOT NULL REFERENCES category(id),
    axis TEXT NOT NULL,
    value NUMERIC(19,4) NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, category_id, axis)
);

CREATE INDEX IF NOT EXISTS idx_user_axis_metric_category ON user_axis_metric(category_id, axis);

-- Cohort-normalized expertise, one row per (user, domain)
CREATE TABLE IF NOT EXISTS expertise_score (
    user_id BIGINT NOT NULL,
    category_id BIGINT NOT NULL REFERENCES category(id),
    raw_score NUMERIC(19,4) NOT NULL,
    weighted_score NUMERIC(19,4) NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, category_id)
);

CREATE INDEX IF NOT EXISTS idx_expertise_score_category ON expertise_score(category_id);

-- Audit trail for every expertise adjustment
CREATE TABLE IF NOT EXISTS score_adjustment (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    category_id BIGINT NOT NULL REFERENCES category(id),
    old_weighted NUMERIC(19,4),
    new_weighted NUMERIC(19,4) NOT NULL,
    raw_score NUMERIC(19,4) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_score_adjustment_user ON score_adjustment(user_id, category_id);

-- Ethics multipliers, owned by the external trust subsystem (read-only here)
CREATE TABLE IF NOT EXISTS ethics_score (
    user_id BIGINT PRIMARY KEY,
    score NUMERIC(19,4) NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Votable events
CREATE TABLE IF NOT EXISTS consultation (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    opens_at TIMESTAMPTZ,
    closes_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Which expertise domains matter for a consultation, and how much
CREATE TABLE IF NOT EXISTS consultation_relevance (
    consultation_id BIGINT NOT NULL REFERENCES consultation(id) ON DELETE CASCADE,
    category_id BIGINT NOT NULL REFERENCES category(id),
    relevance NUMERIC(19,4) NOT NULL,
    criteria JSONB,
    PRIMARY KEY (consultation_id, category_id)
);

-- Append-only vote log, partitioned monthly by created_at.
-- At most one ballot per (user, target): enforced by the vote-casting
-- service before this layer; the store re-checks on append. A unique
-- index cannot express it here because partitioned uniqueness must
-- include created_at.
CREATE SEQUENCE IF NOT EXISTS ballot_id_seq;

CREATE TABLE IF NOT EXISTS ballot (
    id BIGINT NOT NULL DEFAULT nextval('ballot_id_seq'),
    user_id BIGINT NOT NULL,
    target_type TEXT NOT NULL,
    target_id BIGINT NOT NULL,
    modality TEXT NOT NULL,
    raw_value NUMERIC(19,4) NOT NULL,
    weighted_value NUMERIC(19,4) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (id, created_at)
) PARTITION BY RANGE (created_at);

CREATE INDEX IF NOT EXISTS idx_ballot_target ON ballot(target_type, target_id);
CREATE INDEX IF NOT EXISTS idx_ballot_user_target ON ballot(user_id, target_type, target_id);

-- Materialized per-target tallies, written only by the aggregation pipeline
CREATE TABLE IF NOT EXISTS target_result (
    target_type TEXT NOT NULL,
    target_id BIGINT NOT NULL,
    sum_weighted_value NUMERIC(19,4) NOT NULL DEFAULT 0,
    ballot_count BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (target_type, target_id)
);

-- Hash-chained audit ledger, partitioned monthly by logged_at
CREATE TABLE IF NOT EXISTS ledger_entry (
    id TEXT NOT NULL,
    ballot_id BIGINT NOT NULL,
    prev_hash TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    external_anchor TEXT,
    logged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (id, logged_at)
) PARTITION BY RANGE (logged_at);

CREATE INDEX IF NOT EXISTS idx_ledger_entry_ballot ON ledger_entry(ballot_id);

-- Durable aggregation cursor and ledger chain head; exactly one row
CREATE TABLE IF NOT EXISTS aggregation_state (
    id SMALLINT PRIMARY KEY CHECK (id = 1),
    last_ballot_id BIGINT NOT NULL DEFAULT 0,
    chain_head TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

INSERT INTO aggregation_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`
