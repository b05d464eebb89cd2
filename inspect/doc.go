// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package inspect renders read-only operator reports to stdout.

Invoked through the -inspect flag of the daemon binary:

	civic-consensus -inspect results
	civic-consensus -inspect profile 42
	civic-consensus -inspect adjustments 42 civic.energy
	civic-consensus -inspect partitions
	civic-consensus -inspect ledger
	civic-consensus -inspect status

Reports never mutate engine state.
*/
package inspect
