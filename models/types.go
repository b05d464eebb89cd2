// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metric axes. ComputeScore requires all three.
const (
	AxisQuality   = "quality"
	AxisExpertise = "expertise"
	AxisFrequency = "frequency"
)

// Axes lists the metric axes in canonical order.
var Axes = []string{AxisQuality, AxisExpertise, AxisFrequency}

// Coefficient names recognized by the scoring engine and weight calculator.
const (
	CoeffRawWeightQuality   = "RAW_WEIGHT_QUALITY"
	CoeffRawWeightExpertise = "RAW_WEIGHT_EXPERTISE"
	CoeffRawWeightFrequency = "RAW_WEIGHT_FREQUENCY"
	CoeffEthicsCap          = "ETHICS_MULTIPLIER_CAP"
)

// AxisCoefficient maps a metric axis to its coefficient name.
var AxisCoefficient = map[string]string{
	AxisQuality:   CoeffRawWeightQuality,
	AxisExpertise: CoeffRawWeightExpertise,
	AxisFrequency: CoeffRawWeightFrequency,
}

// Ballot modality constants
const (
	ModalityFor     = "for"
	ModalityAgainst = "against"
	ModalityAbstain = "abstain"
)

// Common ballot target types
const (
	TargetProposal       = "proposal"
	TargetDebatePosition = "debate_position"
)

// ScoreScale is the fixed fractional scale for all stored scores and weights.
const ScoreScale = 4

// Category is one node of the materialized-path taxonomy tree.
// Path encodes the chain of ancestor codes down to Code, dot-separated;
// Depth equals the path segment count minus one.
type Category struct {
	ID       int64
	Code     string
	Name     string
	ParentID *int64
	Depth    int
	Path     string
}

// ScoreAdjustment is the audit row written alongside every expertise upsert.
type ScoreAdjustment struct {
	ID          string
	UserID      int64
	CategoryID  int64
	OldWeighted *decimal.Decimal
	NewWeighted decimal.Decimal
	RawScore    decimal.Decimal
	CreatedAt   time.Time
}

// Consultation is a votable event.
type Consultation struct {
	ID       int64
	Title    string
	OpensAt  *time.Time
	ClosesAt *time.Time
}

// Ballot is one immutable cast vote. ID is monotonic; CreatedAt is the
// partition key.
type Ballot struct {
	ID            int64
	UserID        int64
	TargetType    string
	TargetID      int64
	Modality      string
	RawValue      decimal.Decimal
	WeightedValue decimal.Decimal
	CreatedAt     time.Time
}

// TargetResult is the materialized tally for one votable target,
// eventually consistent with the ballot log via the aggregation pipeline.
type TargetResult struct {
	TargetType       string
	TargetID         int64
	SumWeightedValue decimal.Decimal
	BallotCount      int64
	UpdatedAt        time.Time
}

// LedgerEntry binds a ballot to a tamper-evident hash-chained record.
type LedgerEntry struct {
	ID             string
	BallotID       int64
	PrevHash       string
	ContentHash    string
	ExternalAnchor *string
	LoggedAt       time.Time
}

// ExpertiseProfileEntry is one row of a user's expertise profile read path.
type ExpertiseProfileEntry struct {
	CategoryCode  string
	CategoryName  string
	WeightedScore decimal.Decimal
}
