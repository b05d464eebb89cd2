// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/danielhkuo/civic-consensus/aggregate"
	"github.com/danielhkuo/civic-consensus/ballot"
	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/partition"
	"github.com/danielhkuo/civic-consensus/scoring"
)

// Results prints every materialized target tally.
func Results(ctx context.Context, conn *sql.DB) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT target_type, target_id, sum_weighted_value, ballot_count, updated_at
		FROM target_result
		ORDER BY target_type, target_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query target results: %w", err)
	}
	defer rows.Close()

	color.Yellow("\nTarget Results")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Type", "Target", "Weighted Sum", "Ballots", "Updated"})

	for rows.Next() {
		var targetType, sum string
		var targetID, count int64
		var updatedAt time.Time
		if err := rows.Scan(&targetType, &targetID, &sum, &count, &updatedAt); err != nil {
			return err
		}
		table.Append([]string{
			targetType,
			strconv.FormatInt(targetID, 10),
			sum,
			humanize.Comma(count),
			humanize.Time(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	table.Render()
	return nil
}

// Profile prints a user's expertise score per domain.
func Profile(ctx context.Context, engine *scoring.Engine, userID int64) error {
	profile, err := engine.GetExpertiseProfile(ctx, userID)
	if err != nil {
		return err
	}

	color.Yellow("\nExpertise Profile (user %d)", userID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Domain", "Name", "Weighted Score"})

	for _, entry := range profile {
		table.Append([]string{
			entry.CategoryCode,
			entry.CategoryName,
			entry.WeightedScore.StringFixed(4),
		})
	}

	table.Render()
	return nil
}

// Adjustments prints a user's score audit trail for one domain.
func Adjustments(ctx context.Context, engine *scoring.Engine, userID int64, domainCode string) error {
	adjustments, err := engine.ListAdjustments(ctx, userID, domainCode, 50)
	if err != nil {
		return err
	}

	color.Yellow("\nScore Adjustments (user %d, %s)", userID, domainCode)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Old", "New", "Raw", "When"})

	for _, a := range adjustments {
		old := "—"
		if a.OldWeighted != nil {
			old = a.OldWeighted.StringFixed(4)
		}
		table.Append([]string{
			old,
			a.NewWeighted.StringFixed(4),
			a.RawScore.StringFixed(4),
			humanize.Time(a.CreatedAt),
		})
	}

	table.Render()
	return nil
}

// Partitions prints the provisioned partitions for both partitioned tables.
func Partitions(ctx context.Context, mgr *partition.Manager) error {
	color.Yellow("\nProvisioned Partitions")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Table", "Partition"})

	for _, kind := range []partition.Kind{partition.KindBallot, partition.KindLedger} {
		names, err := mgr.List(ctx, kind)
		if err != nil {
			return err
		}
		for _, name := range names {
			table.Append([]string{string(kind), name})
		}
	}

	table.Render()
	return nil
}

// LedgerTail prints the most recent n ledger entries.
func LedgerTail(ctx context.Context, conn *sql.DB, n int) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, ballot_id, content_hash, logged_at
		FROM ledger_entry
		ORDER BY ballot_id DESC
		LIMIT $1
	`, n)
	if err != nil {
		return fmt.Errorf("failed to query ledger tail: %w", err)
	}
	defer rows.Close()

	color.Yellow("\nLedger Tail")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Ballot", "Content Hash", "Logged"})

	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.BallotID, &entry.ContentHash, &entry.LoggedAt); err != nil {
			return err
		}
		table.Append([]string{
			strconv.FormatInt(entry.BallotID, 10),
			entry.ContentHash[:16] + "…",
			humanize.Time(entry.LoggedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	table.Render()
	return nil
}

// Status prints the aggregation cursor, chain head and backlog size.
func Status(ctx context.Context, conn *sql.DB, pipeline *aggregate.Pipeline) error {
	cursor, chainHead, err := pipeline.Cursor(ctx)
	if err != nil {
		return err
	}

	var pending int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballot WHERE id > $1`, cursor).Scan(&pending); err != nil {
		return fmt.Errorf("failed to count pending ballots: %w", err)
	}

	recent, err := ballot.NewStore(conn).CountSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return err
	}

	head := "(genesis)"
	if chainHead != "" {
		head = chainHead[:16] + "…"
	}

	color.Cyan("\n=== Aggregation Status ===")
	fmt.Printf("Cursor (last ballot id): %s\n", humanize.Comma(cursor))
	fmt.Printf("Ledger chain head:       %s\n", head)
	fmt.Printf("Pending ballots:         %s\n", humanize.Comma(pending))
	fmt.Printf("Ballots last 24h:        %s\n", humanize.Comma(recent))
	return nil
}
