// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/coeff"
	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/taxonomy"
)

var ErrMissingMetric = errors.New("missing metric axis")

// Engine computes cohort-normalized expertise scores.
type Engine struct {
	db     *sql.DB
	coeffs *coeff.Store
	tax    *taxonomy.Store

	// Notified after a score upsert commits; wired to the weight
	// calculator's expertise-vector cache invalidation.
	onScoreChanged func(userID int64)
}

func NewEngine(db *sql.DB, coeffs *coeff.Store, tax *taxonomy.Store) *Engine {
	return &Engine{db: db, coeffs: coeffs, tax: tax}
}

// SetOnScoreChanged registers the cache-invalidation hook. Must be
// called before the engine starts computing; not safe to swap later.
func (e *Engine) SetOnScoreChanged(fn func(userID int64)) {
	e.onScoreChanged = fn
}

// ComputeScore persists the supplied raw axis metrics for (user, domain)
// and recomputes the user's weighted expertise score against the domain
// cohort. All three axes are required; a missing axis aborts with
// ErrMissingMetric and nothing is persisted.
func (e *Engine) ComputeScore(ctx context.Context, userID int64, domainCode string, metrics map[string]decimal.Decimal) (decimal.Decimal, error) {
	for _, axis := range models.Axes {
		if _, ok := metrics[axis]; !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingMetric, axis)
		}
	}

	cat, err := e.tax.GetByCode(ctx, domainCode)
	if err != nil {
		return decimal.Zero, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin scoring tx: %w", err)
	}
	defer tx.Rollback()

	for _, axis := range models.Axes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_axis_metric (user_id, category_id, axis, value, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id, category_id, axis)
			DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, userID, cat.ID, axis, metrics[axis])
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to upsert metric %s: %w", axis, err)
		}
	}

	weighted, err := e.scoreInTx(ctx, tx, userID, cat)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit scoring tx: %w", err)
	}

	if e.onScoreChanged != nil {
		e.onScoreChanged(userID)
	}

	return weighted, nil
}

// Recompute refreshes a user's score for a domain from already-stored
// metrics. Used by the nightly full pass.
func (e *Engine) Recompute(ctx context.Context, userID int64, domainCode string) (decimal.Decimal, error) {
	cat, err := e.tax.GetByCode(ctx, domainCode)
	if err != nil {
		return decimal.Zero, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin scoring tx: %w", err)
	}
	defer tx.Rollback()

	weighted, err := e.scoreInTx(ctx, tx, userID, cat)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit scoring tx: %w", err)
	}

	if e.onScoreChanged != nil {
		e.onScoreChanged(userID)
	}

	return weighted, nil
}

// scoreInTx ranks the user against the domain cohort and upserts the
// expertise score plus its audit row. The caller owns the transaction.
func (e *Engine) scoreInTx(ctx context.Context, tx *sql.Tx, userID int64, cat models.Category) (decimal.Decimal, error) {
	subtree, err := e.tax.SubtreeIDs(ctx, cat.Path)
	if err != nil {
		return decimal.Zero, err
	}

	// Cohort values: per-user, per-axis sums across the domain subtree.
	// Fetched in one query, ranked in Go.
	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, axis, SUM(value)
		FROM user_axis_metric
		WHERE category_id = ANY($1)
		GROUP BY user_id, axis
	`, pq.Array(subtree))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query cohort metrics: %w", err)
	}
	defer rows.Close()

	cohort := make(map[string][]decimal.Decimal)
	own := make(map[string]decimal.Decimal)
	for rows.Next() {
		var uid int64
		var axis string
		var value decimal.Decimal
		if err := rows.Scan(&uid, &axis, &value); err != nil {
			return decimal.Zero, err
		}
		cohort[axis] = append(cohort[axis], value)
		if uid == userID {
			own[axis] = value
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}

	weighted := decimal.Zero
	rawScore := decimal.Zero
	for _, axis := range models.Axes {
		value, ok := own[axis]
		if !ok {
			// User has no recorded activity on this axis; contributes 0.
			continue
		}
		rawScore = rawScore.Add(value)

		c, err := e.coeffs.Get(ctx, models.AxisCoefficient[axis])
		if err != nil {
			return decimal.Zero, err
		}
		weighted = weighted.Add(c.Mul(percentileRank(cohort[axis], value)))
	}
	weighted = weighted.Round(models.ScoreScale)

	// Row lock so concurrent writers to the same (user, domain) serialize.
	var oldWeighted decimal.NullDecimal
	err = tx.QueryRowContext(ctx, `
		SELECT weighted_score FROM expertise_score
		WHERE user_id = $1 AND category_id = $2
		FOR UPDATE
	`, userID, cat.ID).Scan(&oldWeighted)
	if err != nil && err != sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("failed to lock expertise score: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expertise_score (user_id, category_id, raw_score, weighted_score, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, category_id)
		DO UPDATE SET raw_score = EXCLUDED.raw_score,
		              weighted_score = EXCLUDED.weighted_score,
		              updated_at = NOW()
	`, userID, cat.ID, rawScore, weighted)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to upsert expertise score: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO score_adjustment (id, user_id, category_id, old_weighted, new_weighted, raw_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.NewString(), userID, cat.ID, oldWeighted, weighted, rawScore)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert score adjustment: %w", err)
	}

	return weighted, nil
}

// PassSummary reports the outcome of a full scoring pass.
type PassSummary struct {
	Scored int
	Failed int
}

// RunScoringPass recomputes every (user, domain) pair that has recorded
// metrics. Per-user failures are isolated and counted, never abort the
// pass; cancellation is honored between pairs.
func (e *Engine) RunScoringPass(ctx context.Context) (PassSummary, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT DISTINCT m.user_id, c.code
		FROM user_axis_metric m
		JOIN category c ON c.id = m.category_id
		ORDER BY m.user_id, c.code
	`)
	if err != nil {
		return PassSummary{}, fmt.Errorf("failed to list scoring pairs: %w", err)
	}
	defer rows.Close()

	type pair struct {
		userID int64
		code   string
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.userID, &p.code); err != nil {
			return PassSummary{}, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return PassSummary{}, err
	}

	var summary PassSummary
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := e.Recompute(ctx, p.userID, p.code); err != nil {
			summary.Failed++
			slog.Error("scoring failed", "user_id", p.userID, "domain", p.code, "error", err)
			continue
		}
		summary.Scored++
	}

	slog.Info("scoring pass complete", "scored", summary.Scored, "failed", summary.Failed)
	return summary, nil
}

// ListAdjustments returns a user's score audit trail for a domain,
// newest first.
func (e *Engine) ListAdjustments(ctx context.Context, userID int64, domainCode string, limit int) ([]models.ScoreAdjustment, error) {
	cat, err := e.tax.GetByCode(ctx, domainCode)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, old_weighted, new_weighted, raw_score, created_at
		FROM score_adjustment
		WHERE user_id = $1 AND category_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, cat.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []models.ScoreAdjustment
	for rows.Next() {
		var a models.ScoreAdjustment
		var old decimal.NullDecimal
		if err := rows.Scan(&a.ID, &a.UserID, &a.CategoryID, &old,
			&a.NewWeighted, &a.RawScore, &a.CreatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			a.OldWeighted = &old.Decimal
		}
		adjustments = append(adjustments, a)
	}

	return adjustments, rows.Err()
}

// GetExpertiseProfile returns a user's weighted score per domain,
// ordered by category code.
func (e *Engine) GetExpertiseProfile(ctx context.Context, userID int64) ([]models.ExpertiseProfileEntry, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT c.code, c.name, s.weighted_score
		FROM expertise_score s
		JOIN category c ON c.id = s.category_id
		WHERE s.user_id = $1
		ORDER BY c.code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expertise profile: %w", err)
	}
	defer rows.Close()

	var profile []models.ExpertiseProfileEntry
	for rows.Next() {
		var entry models.ExpertiseProfileEntry
		if err := rows.Scan(&entry.CategoryCode, &entry.CategoryName, &entry.WeightedScore); err != nil {
			return nil, err
		}
		profile = append(profile, entry)
	}

	return profile, rows.Err()
}
