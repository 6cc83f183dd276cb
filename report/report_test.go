package report

import (
	"math"
	"testing"

	"ctrip-reviews/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil, 42)
	if stats.Count != 0 {
		t.Fatalf("count = %d, want 0", stats.Count)
	}
	if stats.ServerTotal != 42 {
		t.Fatalf("server total = %d, want 42", stats.ServerTotal)
	}
	if stats.ScoredCount != 0 || stats.UsefulSum != 0 {
		t.Fatalf("empty input must yield zero stats: %+v", stats)
	}
}

func TestComputeScores(t *testing.T) {
	reviews := []*models.Review{
		{Score: "5", UsefulCount: 4},
		{Score: "3.5", UsefulCount: 0},
		{Score: "4", UsefulCount: 2},
	}

	stats := Compute(reviews, 3)
	if stats.ScoredCount != 3 {
		t.Fatalf("scored = %d, want 3", stats.ScoredCount)
	}
	if !almostEqual(stats.ScoreMean, 12.5/3) {
		t.Fatalf("mean = %v", stats.ScoreMean)
	}
	if stats.ScoreMin != 3.5 || stats.ScoreMax != 5 {
		t.Fatalf("min/max = %v/%v, want 3.5/5", stats.ScoreMin, stats.ScoreMax)
	}
	if stats.UsefulSum != 6 {
		t.Fatalf("useful sum = %d, want 6", stats.UsefulSum)
	}
	if !almostEqual(stats.UsefulMean, 2) {
		t.Fatalf("useful mean = %v, want 2", stats.UsefulMean)
	}
}

func TestComputeSkipsNonNumericScores(t *testing.T) {
	reviews := []*models.Review{
		{Score: "5"},
		{Score: ""},
		{Score: "not-a-number"},
	}

	stats := Compute(reviews, 0)
	if stats.Count != 3 {
		t.Fatalf("count = %d, want 3", stats.Count)
	}
	if stats.ScoredCount != 1 {
		t.Fatalf("scored = %d, want 1", stats.ScoredCount)
	}
	if stats.ScoreMean != 5 || stats.ScoreMin != 5 || stats.ScoreMax != 5 {
		t.Fatalf("single-score stats wrong: %+v", stats)
	}
}

func TestComputeAllScoresUnparseable(t *testing.T) {
	reviews := []*models.Review{{Score: "x"}, {Score: ""}}

	stats := Compute(reviews, 2)
	if stats.ScoredCount != 0 {
		t.Fatalf("scored = %d, want 0", stats.ScoredCount)
	}
	if stats.ScoreMean != 0 {
		t.Fatalf("mean = %v, want 0 when nothing parses", stats.ScoreMean)
	}
}
