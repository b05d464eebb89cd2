// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package taxonomy manages the hierarchical category tree.

Categories use a materialized path: each row stores the dot-separated
chain of ancestor codes down to its own code, so resolving a domain and
all of its descendants is a single indexed prefix query:

	ids, err := store.SubtreeIDs(ctx, "civic.energy")

The tree is populated once by a taxonomy-load job (Load / Create) and is
immutable afterwards except for administrative corrections. Cohort
queries in the scoring engine depend on SubtreeIDs.
*/
package taxonomy
