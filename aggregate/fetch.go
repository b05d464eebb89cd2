// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/civic-consensus/models"
)

// fetchBatch reads up to limit ballots past the cursor inside the batch
// transaction, ordered by id so the cursor advance is well-defined.
func fetchBatch(ctx context.Context, tx *sql.Tx, cursor int64, limit int) ([]models.Ballot, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, target_type, target_id, modality, raw_value, weighted_value, created_at
		FROM ballot
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ballot batch: %w", err)
	}
	defer rows.Close()

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
