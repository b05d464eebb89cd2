// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/partition"
)

// ErrDuplicate reports a second ballot for the same (user, target).
// Duplicate casting should be rejected by the vote-casting service
// before it reaches this store; Append re-checks as a backstop.
var ErrDuplicate = errors.New("duplicate ballot")

// Store is the append-only log of cast votes. Rows are immutable;
// there is no update or delete path.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewBallot carries the fields of a vote being cast. WeightedValue must
// come from the weight calculator; a failed weight computation blocks
// the cast upstream rather than defaulting here.
type NewBallot struct {
	UserID        int64
	TargetType    string
	TargetID      int64
	Modality      string
	RawValue      decimal.Decimal
	WeightedValue decimal.Decimal
}

// Append writes one ballot and returns its monotonic id.
func (s *Store) Append(ctx context.Context, b NewBallot) (int64, error) {
	// Re-check for double casting. Real enforcement sits in the
	// vote-casting service; partitioned uniqueness cannot express the
	// (user, target) constraint at the storage layer.
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ballot
			WHERE user_id = $1 AND target_type = $2 AND target_id = $3
		)
	`, b.UserID, b.TargetType, b.TargetID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check for duplicate ballot: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: user %d on %s/%d", ErrDuplicate, b.UserID, b.TargetType, b.TargetID)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO ballot (user_id, target_type, target_id, modality, raw_value, weighted_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, b.UserID, b.TargetType, b.TargetID, b.Modality, b.RawValue, b.WeightedValue).Scan(&id)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			return 0, fmt.Errorf("ballot write for current period: %w", partition.ErrNoPartition)
		}
		return 0, fmt.Errorf("failed to append ballot: %w", err)
	}

	return id, nil
}

// ListAfter returns up to limit ballots with id > after, ordered by id
// ascending. This is the aggregation pipeline's fetch shape.
func (s *Store) ListAfter(ctx context.Context, after int64, limit int) ([]models.Ballot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, target_type, target_id, modality, raw_value, weighted_value, created_at
		FROM ballot
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	defer rows.Close()

	return scanBallots(rows)
}

// CountSince returns how many ballots were cast at or after the cutoff.
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ballot WHERE created_at >= $1
	`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ballots: %w", err)
	}
	return n, nil
}

func scanBallots(rows *sql.Rows) ([]models.Ballot, error) {
	var ballots []models.Ballot
	for rows.Next() {
		var b models.Ballot
		if err := rows.Scan(&b.ID, &b.UserID, &b.TargetType, &b.TargetID,
			&b.Modality, &b.RawValue, &b.WeightedValue, &b.CreatedAt); err != nil {
			return nil, err
		}
		ballots = append(ballots, b)
	}
	return ballots, rows.Err()
}
