// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package aggregate is the incremental aggregation pipeline.

RunBatch folds ballots past a durable cursor into materialized
per-target tallies and appends one hash-chained ledger entry per
ballot. Everything in a batch - the additive target_result upserts, the
ledger appends and the cursor advance - commits in a single
transaction, which makes replay after a crash idempotent: a batch whose
commit never landed is simply re-run from the unchanged cursor.

Mutual exclusion between concurrent runs uses a transaction-scoped
Postgres advisory lock keyed on the cursor resource. The loser gets
ErrConcurrentRun and should back off.

The ledger chain head is persisted with the cursor, so the chain is
continuous across restarts and partition boundaries. VerifyLedger walks
the chain and reports the first broken link.
*/
package aggregate
