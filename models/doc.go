// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain types shared across the consensus engine.

# Domain Types

  - Category: materialized-path taxonomy node
  - ScoreAdjustment: audit row for an expertise upsert
  - Consultation: votable event
  - Ballot: immutable cast vote with raw and weighted values
  - TargetResult: materialized per-target tally
  - LedgerEntry: hash-chained audit record
  - ExpertiseProfileEntry: profile read-path row

# Constants

Metric axes:

	AxisQuality   = "quality"
	AxisExpertise = "expertise"
	AxisFrequency = "frequency"

Coefficient names:

	RAW_WEIGHT_QUALITY
	RAW_WEIGHT_EXPERTISE
	RAW_WEIGHT_FREQUENCY
	ETHICS_MULTIPLIER_CAP

All decimal fields carry a fixed scale of ScoreScale (4) fractional
digits; rounding is half away from zero throughout.
*/
package models
