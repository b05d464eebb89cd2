// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

Call CreateSchema once at startup after connecting:

	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}

The schema declares the partitioned parents for the ballot log and the
audit ledger but no child partitions; those are provisioned by the
partition package. Run partition.EnsureUpcoming after CreateSchema or
writes to the current month will fail.
*/
package db
