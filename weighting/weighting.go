// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package weighting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/coeff"
	"github.com/danielhkuo/civic-consensus/models"
)

var ErrConsultationNotFound = errors.New("consultation not found")

// Calculator computes per-consultation voting weights. It is a pure
// read path: ComputeWeight has no side effects beyond cache fills.
type Calculator struct {
	db     *sql.DB
	coeffs *coeff.Store

	// consultation id -> {category id -> relevance}
	relevance *expirable.LRU[int64, map[int64]decimal.Decimal]
	// user id -> {category id -> weighted score}
	expertise *expirable.LRU[int64, map[int64]decimal.Decimal]
}

func NewCalculator(db *sql.DB, coeffs *coeff.Store, cacheSize int, ttl time.Duration) *Calculator {
	return &Calculator{
		db:        db,
		coeffs:    coeffs,
		relevance: expirable.NewLRU[int64, map[int64]decimal.Decimal](cacheSize, nil, ttl),
		expertise: expirable.NewLRU[int64, map[int64]decimal.Decimal](cacheSize, nil, ttl),
	}
}

// ComputeWeight returns the user's scalar voting weight for a
// consultation:
//
//	weight = min(Σ_domain relevance(domain) × expertise(domain), cap) × ethics
//
// The dot product runs over the consultation's relevance domains only;
// expertise in unlisted domains never contributes. The pre-ethics value
// is capped at ETHICS_MULTIPLIER_CAP, then multiplied directly by the
// user's stored ethics score (no centering transform) and rounded to 4
// fractional digits.
//
// Any error here must block vote casting: defaulting the weight to zero
// or one would corrupt consensus semantics.
func (c *Calculator) ComputeWeight(ctx context.Context, userID, consultationID int64) (decimal.Decimal, error) {
	if _, err := c.Consultation(ctx, consultationID); err != nil {
		return decimal.Zero, err
	}

	rel, err := c.relevanceVector(ctx, consultationID)
	if err != nil {
		return decimal.Zero, err
	}

	exp, err := c.expertiseVector(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	dot := decimal.Zero
	for categoryID, r := range rel {
		if score, ok := exp[categoryID]; ok {
			dot = dot.Add(r.Mul(score))
		}
	}

	ethicsCap, err := c.coeffs.Get(ctx, models.CoeffEthicsCap)
	if err != nil {
		return decimal.Zero, err
	}
	if dot.GreaterThan(ethicsCap) {
		dot = ethicsCap
	}

	ethics, err := c.ethicsScore(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return dot.Mul(ethics).Round(models.ScoreScale), nil
}

// SetRelevance upserts one domain's relevance weight for a consultation
// and invalidates the cached vector.
func (c *Calculator) SetRelevance(ctx context.Context, consultationID, categoryID int64, relevance decimal.Decimal, criteria []byte) error {
	var criteriaArg any
	if len(criteria) > 0 {
		criteriaArg = criteria
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO consultation_relevance (consultation_id, category_id, relevance, criteria)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consultation_id, category_id)
		DO UPDATE SET relevance = EXCLUDED.relevance, criteria = EXCLUDED.criteria
	`, consultationID, categoryID, relevance, criteriaArg)
	if err != nil {
		return fmt.Errorf("failed to upsert relevance: %w", err)
	}

	c.relevance.Remove(consultationID)
	return nil
}

// InvalidateUser drops a user's cached expertise vector. Wired to the
// scoring engine's score-changed hook.
func (c *Calculator) InvalidateUser(userID int64) {
	c.expertise.Remove(userID)
}

// InvalidateConsultation drops a consultation's cached relevance vector.
func (c *Calculator) InvalidateConsultation(consultationID int64) {
	c.relevance.Remove(consultationID)
}

// Consultation resolves a votable event by id. A weight request for a
// consultation that does not exist is a caller bug, not a zero weight,
// so ComputeWeight checks here first.
func (c *Calculator) Consultation(ctx context.Context, id int64) (models.Consultation, error) {
	var con models.Consultation
	var opens, closes sql.NullTime
	err := c.db.QueryRowContext(ctx, `
		SELECT id, title, opens_at, closes_at FROM consultation WHERE id = $1
	`, id).Scan(&con.ID, &con.Title, &opens, &closes)

	if err == sql.ErrNoRows {
		return models.Consultation{}, fmt.Errorf("%w: %d", ErrConsultationNotFound, id)
	}
	if err != nil {
		return models.Consultation{}, fmt.Errorf("failed to query consultation: %w", err)
	}

	if opens.Valid {
		con.OpensAt = &opens.Time
	}
	if closes.Valid {
		con.ClosesAt = &closes.Time
	}
	return con, nil
}

func (c *Calculator) relevanceVector(ctx context.Context, consultationID int64) (map[int64]decimal.Decimal, error) {
	if v, ok := c.relevance.Get(consultationID); ok {
		return v, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT category_id, relevance
		FROM consultation_relevance
		WHERE consultation_id = $1
	`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relevance vector: %w", err)
	}
	defer rows.Close()

	vector := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var categoryID int64
		var r decimal.Decimal
		if err := rows.Scan(&categoryID, &r); err != nil {
			return nil, err
		}
		vector[categoryID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.relevance.Add(consultationID, vector)
	return vector, nil
}

func (c *Calculator) expertiseVector(ctx context.Context, userID int64) (map[int64]decimal.Decimal, error) {
	if v, ok := c.expertise.Get(userID); ok {
		return v, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT category_id, weighted_score
		FROM expertise_score
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expertise vector: %w", err)
	}
	defer rows.Close()

	vector := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var categoryID int64
		var score decimal.Decimal
		if err := rows.Scan(&categoryID, &score); err != nil {
			return nil, err
		}
		vector[categoryID] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.expertise.Add(userID, vector)
	return vector, nil
}

// ethicsScore reads the trust subsystem's multiplier for a user.
// A user with no row is neutral (1.0).
func (c *Calculator) ethicsScore(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := c.db.QueryRowContext(ctx, `
		SELECT score FROM ethics_score WHERE user_id = $1
	`, userID).Scan(&score)

	if err == sql.ErrNoRows {
		return decimal.NewFromInt(1), nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query ethics score: %w", err)
	}

	return score, nil
}
