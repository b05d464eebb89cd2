// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ErrNoPartition reports a write that targets a period with no
// provisioned partition. Fatal for the writer: the scheduler or an
// operator must provision the partition, retrying will not help.
var ErrNoPartition = errors.New("no partition for period")

// Kind selects which partitioned table a period belongs to.
type Kind string

const (
	KindBallot Kind = "ballot"
	KindLedger Kind = "ledger_entry"
)

var kindColumn = map[Kind]string{
	KindBallot: "created_at",
	KindLedger: "logged_at",
}

// Manager provisions monthly range partitions for the ballot log and
// the audit ledger.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// EnsurePartition creates the partition covering the month of
// periodStart if absent. Idempotent.
func (m *Manager) EnsurePartition(ctx context.Context, kind Kind, periodStart time.Time) error {
	if _, ok := kindColumn[kind]; !ok {
		return fmt.Errorf("unknown partition kind %q", kind)
	}

	from := monthStart(periodStart)
	to := from.AddDate(0, 1, 0)
	name := PartitionName(kind, from)

	// Identifiers come from the fixed kind table and a formatted date,
	// never caller input, so string assembly is safe here.
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		name, string(kind),
		from.Format("2006-01-02"), to.Format("2006-01-02"),
	)

	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure partition %s: %w", name, err)
	}

	return nil
}

// EnsureUpcoming provisions partitions for both tables from the current
// month through leadMonths ahead. Called by the scheduler daily so
// writes never land in a gap.
func (m *Manager) EnsureUpcoming(ctx context.Context, leadMonths int) error {
	now := time.Now().UTC()
	for i := 0; i <= leadMonths; i++ {
		period := monthStart(now).AddDate(0, i, 0)
		for _, kind := range []Kind{KindBallot, KindLedger} {
			if err := m.EnsurePartition(ctx, kind, period); err != nil {
				return err
			}
		}
	}

	slog.Info("partitions provisioned", "through", monthStart(now).AddDate(0, leadMonths, 0).Format("2006-01"))
	return nil
}

// List returns the provisioned partition names for a table, oldest first.
func (m *Manager) List(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT child.relname
		FROM pg_inherits
		JOIN pg_class parent ON parent.oid = pg_inherits.inhparent
		JOIN pg_class child ON child.oid = pg_inherits.inhrelid
		WHERE parent.relname = $1
		ORDER BY child.relname
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// PartitionName returns the child table name for a kind and month,
// e.g. ballot_y2026m08.
func PartitionName(kind Kind, periodStart time.Time) string {
	t := monthStart(periodStart)
	return fmt.Sprintf("%s_y%dm%02d", string(kind), t.Year(), int(t.Month()))
}

// IsNoPartition reports whether err is Postgres rejecting a row because
// no partition covers it (SQLSTATE 23514 on a partitioned table).
func IsNoPartition(err error) bool {
	if errors.Is(err, ErrNoPartition) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
