// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package partition_test

import (
	"context"
	"testing"
	"time"

	"github.com/danielhkuo/civic-consensus/partition"
	"github.com/danielhkuo/civic-consensus/testutil"
)

func TestEnsurePartition_Idempotent(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	mgr := partition.NewManager(conn)
	ctx := context.Background()

	period := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

	if err := mgr.EnsurePartition(ctx, partition.KindBallot, period); err != nil {
		t.Fatalf("EnsurePartition failed: %v", err)
	}
	// Second call is a no-op, not an error
	if err := mgr.EnsurePartition(ctx, partition.KindBallot, period); err != nil {
		t.Fatalf("EnsurePartition should be idempotent: %v", err)
	}

	names, err := mgr.List(ctx, partition.KindBallot)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := partition.PartitionName(partition.KindBallot, period)
	found := false
	for _, name := range names {
		if name == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in partition list %v", want, names)
	}
}

func TestEnsurePartition_RejectsUnknownKind(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	mgr := partition.NewManager(conn)

	if err := mgr.EnsurePartition(context.Background(), partition.Kind("bogus"), time.Now()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestPartitionName(t *testing.T) {
	period := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	if got := partition.PartitionName(partition.KindBallot, period); got != "ballot_y2026m08" {
		t.Errorf("expected ballot_y2026m08, got %s", got)
	}
	if got := partition.PartitionName(partition.KindLedger, period); got != "ledger_entry_y2026m08" {
		t.Errorf("expected ledger_entry_y2026m08, got %s", got)
	}
}

func TestWriteIntoUnprovisionedMonthFails(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	// SetupTestDB provisions one month of lead; six months out has no
	// partition
	future := time.Now().UTC().AddDate(0, 6, 0)
	_, err := conn.Exec(`
		INSERT INTO ballot (user_id, target_type, target_id, modality, raw_value, weighted_value, created_at)
		VALUES (1, 'proposal', 1, 'for', 1, 1, $1)
	`, future)
	if err == nil {
		t.Fatal("expected write into unprovisioned month to fail")
	}
	if !partition.IsNoPartition(err) {
		t.Errorf("expected missing-partition classification, got %v", err)
	}

	// After provisioning, the same write succeeds
	mgr := partition.NewManager(conn)
	if err := mgr.EnsurePartition(context.Background(), partition.KindBallot, future); err != nil {
		t.Fatalf("EnsurePartition failed: %v", err)
	}
	_, err = conn.Exec(`
		INSERT INTO ballot (user_id, target_type, target_id, modality, raw_value, weighted_value, created_at)
		VALUES (1, 'proposal', 1, 'for', 1, 1, $1)
	`, future)
	if err != nil {
		t.Fatalf("write after provisioning failed: %v", err)
	}
}
