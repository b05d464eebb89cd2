// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package partition manages the monthly storage partitions backing the
ballot log and the audit ledger.

Partitions must exist before the period they cover; a write into an
unprovisioned month fails with SQLSTATE 23514, surfaced to callers as
ErrNoPartition. That failure is fatal for the writer: it requires
scheduler or operator intervention, not a retry loop.

The scheduler calls EnsureUpcoming daily with a lead of at least one
month so the boundary crossing at month end never hits a gap.
*/
package partition
