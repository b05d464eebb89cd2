// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package taxonomy

import (
	"context"
	"errors"
	"testing"

	"github.com/danielhkuo/civic-consensus/testutil"
)

func TestCreate_DerivesPathAndDepth(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	store := NewStore(conn)
	ctx := context.Background()

	root, err := store.Create(ctx, "civic", "Civic", "")
	if err != nil {
		t.Fatalf("Create root failed: %v", err)
	}
	if root.Path != "civic" || root.Depth != 0 {
		t.Errorf("root: expected path=civic depth=0, got path=%s depth=%d", root.Path, root.Depth)
	}

	child, err := store.Create(ctx, "energy", "Energy", "civic")
	if err != nil {
		t.Fatalf("Create child failed: %v", err)
	}
	if child.Path != "civic.energy" || child.Depth != 1 {
		t.Errorf("child: expected path=civic.energy depth=1, got path=%s depth=%d", child.Path, child.Depth)
	}
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Errorf("child parent should be %d, got %v", root.ID, child.ParentID)
	}

	grandchild, err := store.Create(ctx, "solar", "Solar", "energy")
	if err != nil {
		t.Fatalf("Create grandchild failed: %v", err)
	}
	if grandchild.Path != "civic.energy.solar" || grandchild.Depth != 2 {
		t.Errorf("grandchild: got path=%s depth=%d", grandchild.Path, grandchild.Depth)
	}
}

func TestCreate_RejectsInvalidCode(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	store := NewStore(conn)

	if _, err := store.Create(context.Background(), "a.b", "Dotted", ""); err == nil {
		t.Fatal("expected error for dotted code")
	}
	if _, err := store.Create(context.Background(), "", "Empty", ""); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestSubtreeIDs(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	store := NewStore(conn)
	ctx := context.Background()

	entries := []LoadEntry{
		{Code: "civic", Name: "Civic"},
		{Code: "energy", Name: "Energy", ParentCode: "civic"},
		{Code: "solar", Name: "Solar", ParentCode: "energy"},
		{Code: "wind", Name: "Wind", ParentCode: "energy"},
		{Code: "housing", Name: "Housing", ParentCode: "civic"},
	}
	if n, err := store.Load(ctx, entries); err != nil || n != 5 {
		t.Fatalf("Load: n=%d err=%v", n, err)
	}

	energy, err := store.GetByCode(ctx, "energy")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}

	ids, err := store.SubtreeIDs(ctx, energy.Path)
	if err != nil {
		t.Fatalf("SubtreeIDs failed: %v", err)
	}

	// energy + solar + wind, not housing and not the root
	if len(ids) != 3 {
		t.Fatalf("expected 3 subtree ids, got %d: %v", len(ids), ids)
	}

	housing, err := store.GetByCode(ctx, "housing")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	for _, id := range ids {
		if id == housing.ID {
			t.Error("sibling domain leaked into subtree")
		}
	}
}

func TestGetByCode_NotFound(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()
	store := NewStore(conn)

	_, err := store.GetByCode(context.Background(), "nope")
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}
