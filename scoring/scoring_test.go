// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/civic-consensus/coeff"
	"github.com/danielhkuo/civic-consensus/models"
	"github.com/danielhkuo/civic-consensus/taxonomy"
	"github.com/danielhkuo/civic-consensus/testutil"
)

func newTestEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	coeffs := coeff.NewStore(conn, 128, time.Minute)
	tax := taxonomy.NewStore(conn)
	engine := NewEngine(conn, coeffs, tax)

	return engine, conn
}

func metricsOf(quality, expertise, frequency string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		models.AxisQuality:   dec(quality),
		models.AxisExpertise: dec(expertise),
		models.AxisFrequency: dec(frequency),
	}
}

func TestComputeScore_MissingMetric(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	_, err := engine.ComputeScore(context.Background(), 1, "energy", map[string]decimal.Decimal{
		models.AxisQuality: dec("10"),
	})
	if !errors.Is(err, ErrMissingMetric) {
		t.Fatalf("expected ErrMissingMetric, got %v", err)
	}
}

func TestComputeScore_TwoUserCohort(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	testutil.CreateTestCategory(t, conn, "energy", "")
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightQuality, dec("1"))
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightExpertise, dec("0"))
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightFrequency, dec("0"))

	ctx := context.Background()

	// userA alone: cohort of one ranks 0
	scoreA, err := engine.ComputeScore(ctx, 1, "energy", metricsOf("10", "0", "0"))
	if err != nil {
		t.Fatalf("ComputeScore(userA) failed: %v", err)
	}
	if !scoreA.Equal(dec("0")) {
		t.Errorf("userA first score: expected 0.0000, got %s", scoreA)
	}

	// userB joins with a higher quality metric
	scoreB, err := engine.ComputeScore(ctx, 2, "energy", metricsOf("90", "0", "0"))
	if err != nil {
		t.Fatalf("ComputeScore(userB) failed: %v", err)
	}
	if !scoreB.Equal(dec("1")) {
		t.Errorf("userB score: expected 1.0000, got %s", scoreB)
	}

	// userA recomputed against the two-user cohort stays at 0
	scoreA, err = engine.Recompute(ctx, 1, "energy")
	if err != nil {
		t.Fatalf("Recompute(userA) failed: %v", err)
	}
	if !scoreA.Equal(dec("0")) {
		t.Errorf("userA recomputed score: expected 0.0000, got %s", scoreA)
	}
}

func TestComputeScore_CohortIncludesDescendants(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	testutil.CreateTestCategory(t, conn, "energy", "")
	testutil.CreateTestCategory(t, conn, "solar", "energy")
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightQuality, dec("1"))
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightExpertise, dec("0"))
	testutil.SetTestCoefficient(t, conn, models.CoeffRawWeightFrequency, dec("0"))

	ctx := context.Background()

	// user 2's activity lives in the descendant domain
	if _, err := engine.ComputeScore(ctx, 2, "solar", metricsOf("100", "0", "0")); err != nil {
		t.Fatalf("ComputeScore(solar) failed: %v", err)
	}

	// user 1 scored at the parent is ranked against the subtree cohort
	score, err := engine.ComputeScore(ctx, 1, "energy", metricsOf("50", "0", "0"))
	if err != nil {
		t.Fatalf("ComputeScore(energy) failed: %v", err)
	}
	if !score.Equal(dec("0")) {
		t.Errorf("user 1 should rank below the solar user, got %s", score)
	}

	// a third user above both ranks 1 at the parent
	score, err = engine.ComputeScore(ctx, 3, "energy", metricsOf("200", "0", "0"))
	if err != nil {
		t.Fatalf("ComputeScore(energy) failed: %v", err)
	}
	if !score.Equal(dec("1")) {
		t.Errorf("top user should rank 1, got %s", score)
	}
}

func TestComputeScore_WritesAuditRow(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	catID := testutil.CreateTestCategory(t, conn, "energy", "")

	ctx := context.Background()
	if _, err := engine.ComputeScore(ctx, 7, "energy", metricsOf("10", "20", "30")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}
	if _, err := engine.ComputeScore(ctx, 7, "energy", metricsOf("15", "20", "30")); err != nil {
		t.Fatalf("second ComputeScore failed: %v", err)
	}

	var adjustments int
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM score_adjustment WHERE user_id = 7 AND category_id = $1
	`, catID).Scan(&adjustments)
	if err != nil {
		t.Fatalf("failed to count adjustments: %v", err)
	}
	if adjustments != 2 {
		t.Errorf("expected 2 audit rows, got %d", adjustments)
	}

	// Exactly one expertise row despite two computes (upsert semantics)
	var scores int
	err = conn.QueryRow(`
		SELECT COUNT(*) FROM expertise_score WHERE user_id = 7 AND category_id = $1
	`, catID).Scan(&scores)
	if err != nil {
		t.Fatalf("failed to count scores: %v", err)
	}
	if scores != 1 {
		t.Errorf("expected 1 expertise row, got %d", scores)
	}
}

func TestListAdjustments(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	testutil.CreateTestCategory(t, conn, "energy", "")

	ctx := context.Background()
	if _, err := engine.ComputeScore(ctx, 7, "energy", metricsOf("10", "20", "30")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}
	if _, err := engine.ComputeScore(ctx, 7, "energy", metricsOf("15", "20", "30")); err != nil {
		t.Fatalf("second ComputeScore failed: %v", err)
	}

	adjustments, err := engine.ListAdjustments(ctx, 7, "energy", 10)
	if err != nil {
		t.Fatalf("ListAdjustments failed: %v", err)
	}
	if len(adjustments) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(adjustments))
	}

	// Newest first: the second compute saw the first one's value
	if adjustments[0].OldWeighted == nil {
		t.Error("newest adjustment should carry the previous weighted score")
	}
	if adjustments[1].OldWeighted != nil {
		t.Errorf("first-ever adjustment should have no previous score, got %s", adjustments[1].OldWeighted)
	}
}

func TestRunScoringPass_ScoresEveryPair(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	testutil.CreateTestCategory(t, conn, "energy", "")

	ctx := context.Background()
	if _, err := engine.ComputeScore(ctx, 1, "energy", metricsOf("10", "1", "1")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}
	if _, err := engine.ComputeScore(ctx, 2, "energy", metricsOf("90", "2", "2")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}

	summary, err := engine.RunScoringPass(ctx)
	if err != nil {
		t.Fatalf("RunScoringPass failed: %v", err)
	}
	if summary.Scored != 2 || summary.Failed != 0 {
		t.Errorf("expected 2 scored / 0 failed, got %+v", summary)
	}
}

func TestRunScoringPass_IsolatesPerUserFailures(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	catID := testutil.CreateTestCategory(t, conn, "energy", "")

	ctx := context.Background()
	if _, err := engine.ComputeScore(ctx, 1, "energy", metricsOf("10", "1", "1")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}
	if _, err := engine.ComputeScore(ctx, 2, "energy", metricsOf("90", "2", "2")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}

	// Poison user 3: per-axis values at the NUMERIC(19,4) ceiling, so the
	// raw-score sum overflows when the expertise row is written
	for _, axis := range models.Axes {
		_, err := conn.Exec(`
			INSERT INTO user_axis_metric (user_id, category_id, axis, value)
			VALUES (3, $1, $2, 999999999999999)
		`, catID, axis)
		if err != nil {
			t.Fatalf("failed to seed oversized metric: %v", err)
		}
	}

	summary, err := engine.RunScoringPass(ctx)
	if err != nil {
		t.Fatalf("RunScoringPass must not abort on a per-user failure: %v", err)
	}
	if summary.Scored != 2 {
		t.Errorf("expected 2 scored, got %d", summary.Scored)
	}
	if summary.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", summary.Failed)
	}

	// The healthy users' scores were still written
	var scored int
	err = conn.QueryRow(`
		SELECT COUNT(*) FROM expertise_score WHERE category_id = $1 AND user_id IN (1, 2)
	`, catID).Scan(&scored)
	if err != nil {
		t.Fatalf("failed to count scores: %v", err)
	}
	if scored != 2 {
		t.Errorf("expected 2 expertise rows for healthy users, got %d", scored)
	}
}

func TestGetExpertiseProfile(t *testing.T) {
	engine, conn := newTestEngine(t)
	defer conn.Close()

	testutil.CreateTestCategory(t, conn, "art", "")
	testutil.CreateTestCategory(t, conn, "energy", "")

	ctx := context.Background()
	if _, err := engine.ComputeScore(ctx, 5, "energy", metricsOf("10", "1", "1")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}
	if _, err := engine.ComputeScore(ctx, 5, "art", metricsOf("3", "1", "1")); err != nil {
		t.Fatalf("ComputeScore failed: %v", err)
	}

	profile, err := engine.GetExpertiseProfile(ctx, 5)
	if err != nil {
		t.Fatalf("GetExpertiseProfile failed: %v", err)
	}
	if len(profile) != 2 {
		t.Fatalf("expected 2 profile entries, got %d", len(profile))
	}
	// Ordered by category code
	if profile[0].CategoryCode != "art" || profile[1].CategoryCode != "energy" {
		t.Errorf("unexpected profile order: %+v", profile)
	}
}
