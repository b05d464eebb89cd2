// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/testutil"
)

// TestRunBatch_ConcurrentRunRejected verifies the single-writer
// guarantee: while one session holds the aggregation advisory lock, a
// batch run fails fast with ErrConcurrentRun and leaves state untouched.
func TestRunBatch_ConcurrentRunRejected(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	pipeline := NewPipeline(conn)
	ctx := context.Background()

	testutil.InsertTestBallot(t, conn, 1, models.TargetProposal, 3, dec("1"))

	// Hold the lock from a second session, as a competing run would
	holder, err := conn.Conn(ctx)
	if err != nil {
		t.Fatalf("failed to open holder connection: %v", err)
	}
	defer holder.Close()

	tx, err := holder.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin holder tx: %v", err)
	}
	defer tx.Rollback()

	var locked bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, aggregationLockKey).Scan(&locked); err != nil {
		t.Fatalf("failed to take advisory lock: %v", err)
	}
	if !locked {
		t.Fatal("holder should acquire the lock")
	}

	_, _, err = pipeline.RunBatch(ctx, 100)
	if !errors.Is(err, ErrConcurrentRun) {
		t.Fatalf("expected ErrConcurrentRun, got %v", err)
	}

	cursor, _, err := pipeline.Cursor(ctx)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cursor != 0 {
		t.Errorf("rejected run must not advance the cursor, got %d", cursor)
	}

	// Release the lock and the batch goes through
	if err := tx.Rollback(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}

	processed, _, err := pipeline.RunBatch(ctx, 100)
	if err != nil {
		t.Fatalf("RunBatch after release failed: %v", err)
	}
	if processed != 1 {
		t.Errorf("expected 1 processed after release, got %d", processed)
	}
}
