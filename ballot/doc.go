// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ballot is the append-only, time-partitioned log of cast votes.

The vote-casting service calls Append with the raw vote value and the
weighted value it obtained from the weight calculator. Ballots are
immutable once written and carry a monotonic id, which the aggregation
pipeline uses as its cursor ordering.

Append classifies the two storage failures callers must distinguish:
ErrDuplicate (backstop re-check for double casting, which the
vote-casting service enforces first) and partition.ErrNoPartition (the
current month has no provisioned partition - fatal, alert the operator).
*/
package ballot
