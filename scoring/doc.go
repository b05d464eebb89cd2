// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scoring implements the expertise scoring engine.

ComputeScore converts a user's raw activity metrics (quality, expertise,
frequency) into a weighted expertise score for one taxonomy domain. Each
axis is normalized to a [0,1] percentile rank relative to the cohort of
users with recorded metrics in the domain or any of its descendants,
then combined as a coefficient-weighted sum:

	weighted = Σ_axis coefficient(axis) × percentileRank(axis)

rounded to 4 fractional digits, half away from zero. A cohort of size
one ranks 0 on every axis.

Every score write is an upsert on (user, domain) under a row lock, with
an audit row recording the old and new weighted values in the same
transaction.

RunScoringPass is the nightly batch entry: it recomputes all pairs with
recorded metrics, isolating per-user failures and returning a summary
for the scheduler.
*/
package scoring
