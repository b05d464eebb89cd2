// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coeff

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/models"
)

// Defaults used when a coefficient has no stored row. The engine must
// keep producing answers on incomplete configuration, so a miss falls
// back here and is logged, never fatal.
var defaults = map[string]decimal.Decimal{
	models.CoeffRawWeightQuality:   decimal.NewFromInt(1),
	models.CoeffRawWeightExpertise: decimal.NewFromInt(1),
	models.CoeffRawWeightFrequency: decimal.NewFromInt(1),
	models.CoeffEthicsCap:          decimal.NewFromInt(5),
}

// Store reads operator-tunable coefficients through a bounded TTL cache.
// Set invalidates the cached entry immediately; the TTL only bounds
// staleness for writes that bypass this process.
type Store struct {
	db    *sql.DB
	cache *expirable.LRU[string, decimal.Decimal]
}

func NewStore(db *sql.DB, cacheSize int, ttl time.Duration) *Store {
	return &Store{
		db:    db,
		cache: expirable.NewLRU[string, decimal.Decimal](cacheSize, nil, ttl),
	}
}

// Get returns the globally scoped coefficient value.
func (s *Store) Get(ctx context.Context, name string) (decimal.Decimal, error) {
	return s.GetScoped(ctx, name, "")
}

// GetScoped returns a coefficient for a specific field scope. A missing
// row resolves to the documented default for the name.
func (s *Store) GetScoped(ctx context.Context, name, scope string) (decimal.Decimal, error) {
	key := name + "|" + scope
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	var v decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM score_coefficient WHERE name = $1 AND field_scope = $2
	`, name, scope).Scan(&v)

	if err == sql.ErrNoRows {
		fallback, ok := defaults[name]
		if !ok {
			fallback = decimal.Zero
		}
		slog.Warn("coefficient not configured, using fallback",
			"name", name, "scope", scope, "fallback", fallback.String())
		s.cache.Add(key, fallback)
		return fallback, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query coefficient %s: %w", name, err)
	}

	s.cache.Add(key, v)
	return v, nil
}

// Set upserts a coefficient and invalidates its cache entry.
func (s *Store) Set(ctx context.Context, name, scope string, value decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_coefficient (name, field_scope, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name, field_scope)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, name, scope, value)
	if err != nil {
		return fmt.Errorf("failed to upsert coefficient %s: %w", name, err)
	}

	s.cache.Remove(name + "|" + scope)
	return nil
}

// Invalidate drops every cached coefficient. Call after bulk operator
// edits made outside this process.
func (s *Store) Invalidate() {
	s.cache.Purge()
}
