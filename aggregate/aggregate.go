// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/partition"
)

// ErrConcurrentRun reports that another aggregation batch holds the
// advisory lock. Retryable: back off and run again later.
var ErrConcurrentRun = errors.New("concurrent aggregation detected")

// Advisory lock key for the aggregation cursor resource.
const aggregationLockKey int64 = 0x61676772 // "aggr"

// Pipeline incrementally folds new ballots into per-target results and
// appends one hash-chained ledger entry per ballot. It is the sole
// writer of target_result, ledger_entry and aggregation_state.
type Pipeline struct {
	db *sql.DB
}

func NewPipeline(db *sql.DB) *Pipeline {
	return &Pipeline{db: db}
}

type targetKey struct {
	targetType string
	targetID   int64
}

// RunBatch processes up to maxBatchSize ballots past the durable cursor.
//
// The whole batch is one transaction: result upserts, ledger appends
// and the cursor advance commit together or not at all, so a crash
// mid-batch is replayed cleanly with no double counting. Mutual
// exclusion comes from a transaction-scoped advisory lock; a second
// concurrent run fails fast with ErrConcurrentRun.
func (p *Pipeline) RunBatch(ctx context.Context, maxBatchSize int) (processed int, newCursor int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin aggregation tx: %w", err)
	}
	defer tx.Rollback()

	var locked bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, aggregationLockKey).Scan(&locked); err != nil {
		return 0, 0, fmt.Errorf("failed to acquire aggregation lock: %w", err)
	}
	if !locked {
		return 0, 0, ErrConcurrentRun
	}

	var cursor int64
	var chainHead string
	err = tx.QueryRowContext(ctx, `
		SELECT last_ballot_id, chain_head FROM aggregation_state WHERE id = 1 FOR UPDATE
	`).Scan(&cursor, &chainHead)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read aggregation cursor: %w", err)
	}

	ballots, err := fetchBatch(ctx, tx, cursor, maxBatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(ballots) == 0 {
		// Idempotent no-op: nothing past the cursor, no state change.
		return 0, cursor, nil
	}

	sums := make(map[targetKey]decimal.Decimal)
	counts := make(map[targetKey]int64)
	for _, b := range ballots {
		key := targetKey{b.TargetType, b.TargetID}
		sums[key] = sums[key].Add(b.WeightedValue)
		counts[key]++
	}

	for key, sum := range sums {
		// Additive upsert: later batches must never erase earlier
		// contributions.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO target_result (target_type, target_id, sum_weighted_value, ballot_count, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (target_type, target_id)
			DO UPDATE SET sum_weighted_value = target_result.sum_weighted_value + EXCLUDED.sum_weighted_value,
			              ballot_count = target_result.ballot_count + EXCLUDED.ballot_count,
			              updated_at = NOW()
		`, key.targetType, key.targetID, sum, counts[key])
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert target result %s/%d: %w", key.targetType, key.targetID, err)
		}
	}

	loggedAt := time.Now().UTC()
	for _, b := range ballots {
		hash := chainHash(chainHead, b)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entry (id, ballot_id, prev_hash, content_hash, logged_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), b.ID, chainHead, hash, loggedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23514" {
				return 0, 0, fmt.Errorf("ledger write for %s: %w", loggedAt.Format("2006-01"), partition.ErrNoPartition)
			}
			return 0, 0, fmt.Errorf("failed to append ledger entry for ballot %d: %w", b.ID, err)
		}
		chainHead = hash
	}

	newCursor = ballots[len(ballots)-1].ID
	_, err = tx.ExecContext(ctx, `
		UPDATE aggregation_state SET last_ballot_id = $1, chain_head = $2, updated_at = NOW() WHERE id = 1
	`, newCursor, chainHead)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to advance aggregation cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit aggregation batch: %w", err)
	}

	slog.Info("aggregation batch committed",
		"processed", len(ballots), "targets", len(sums), "cursor", newCursor)

	return len(ballots), newCursor, nil
}

// Run drains all pending ballots in cursor order, one batch at a time.
// Cancellation is honored between batches, never inside a commit.
func (p *Pipeline) Run(ctx context.Context, maxBatchSize int) (total int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, _, err := p.RunBatch(ctx, maxBatchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < maxBatchSize {
			return total, nil
		}
	}
}

// GetTargetResult returns the materialized tally for a target. A target
// with no aggregated ballots yet reads as a zero tally.
func (p *Pipeline) GetTargetResult(ctx context.Context, targetType string, targetID int64) (models.TargetResult, error) {
	result := models.TargetResult{
		TargetType:       targetType,
		TargetID:         targetID,
		SumWeightedValue: decimal.Zero,
	}

	err := p.db.QueryRowContext(ctx, `
		SELECT sum_weighted_value, ballot_count, updated_at
		FROM target_result
		WHERE target_type = $1 AND target_id = $2
	`, targetType, targetID).Scan(&result.SumWeightedValue, &result.BallotCount, &result.UpdatedAt)

	if err == sql.ErrNoRows {
		return result, nil
	}
	if err != nil {
		return models.TargetResult{}, fmt.Errorf("failed to query target result: %w", err)
	}

	return result, nil
}

// Cursor returns the durable aggregation cursor and ledger chain head.
func (p *Pipeline) Cursor(ctx context.Context) (lastBallotID int64, chainHead string, err error) {
	err = p.db.QueryRowContext(ctx, `
		SELECT last_ballot_id, chain_head FROM aggregation_state WHERE id = 1
	`).Scan(&lastBallotID, &chainHead)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read aggregation state: %w", err)
	}
	return lastBallotID, chainHead, nil
}

// VerifyLedger recomputes the hash chain over every ledger entry in
// ballot order and reports the first tampered or missing link. Returns
// the number of verified entries.
func (p *Pipeline) VerifyLedger(ctx context.Context) (int, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.prev_hash, l.content_hash,
		       b.id, b.user_id, b.target_type, b.target_id, b.modality,
		       b.raw_value, b.weighted_value, b.created_at
		FROM ledger_entry l
		JOIN ballot b ON b.id = l.ballot_id
		ORDER BY b.id ASC
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	verified := 0
	prev := ""
	for rows.Next() {
		var storedPrev, storedHash string
		var b models.Ballot
		if err := rows.Scan(&storedPrev, &storedHash,
			&b.ID, &b.UserID, &b.TargetType, &b.TargetID, &b.Modality,
			&b.RawValue, &b.WeightedValue, &b.CreatedAt); err != nil {
			return verified, err
		}

		if storedPrev != prev {
			return verified, fmt.Errorf("ledger chain broken at ballot %d: prev hash mismatch", b.ID)
		}
		if expected := chainHash(prev, b); storedHash != expected {
			return verified, fmt.Errorf("ledger chain broken at ballot %d: content hash mismatch", b.ID)
		}

		prev = storedHash
		verified++
	}

	return verified, rows.Err()
}
