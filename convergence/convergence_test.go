package convergence

import (
	"math"
	"testing"

	"github.com/hazyhaar/plagiat/score"
	"github.com/hazyhaar/plagiat/section"
)

func avail(dim score.Dimension, v float64) score.DimensionScore {
	return score.DimensionScore{Dimension: dim, Value: v}
}

func TestScoreMeanOfBoth(t *testing.T) {
	rec := New(Config{}).Score(section.TypeHero,
		avail(score.Visual, 0.85), avail(score.Interaction, 0.80))

	if math.Abs(rec.Score-0.825) > 1e-9 {
		t.Fatalf("score = %v, want 0.825", rec.Score)
	}
	if !rec.High || rec.Medium || rec.Partial || rec.Unscored {
		t.Fatalf("flags = %+v", rec)
	}
}

func TestScorePartial(t *testing.T) {
	// WHAT: an unavailable dimension is excluded from the mean, not zeroed.
	rec := New(Config{}).Score(section.TypeFeatures,
		score.Unavailable(score.Visual, "screenshot failed"),
		avail(score.Interaction, 0.60))

	if !rec.Partial {
		t.Fatal("want partial")
	}
	if math.Abs(rec.Score-0.60) > 1e-9 {
		t.Fatalf("score = %v, want 0.60", rec.Score)
	}
	if rec.High || !rec.Medium {
		t.Fatalf("bands = high:%v medium:%v", rec.High, rec.Medium)
	}
}

func TestScoreUnscored(t *testing.T) {
	rec := New(Config{}).Score(section.TypeCTA,
		score.Unavailable(score.Visual, "screenshot failed"),
		score.Unavailable(score.Interaction, "no markup"))

	if !rec.Unscored {
		t.Fatal("want unscored")
	}
	if rec.Score != 0 || rec.High || rec.Medium {
		t.Fatalf("unscored record carries bands: %+v", rec)
	}
}

func TestBandBoundaries(t *testing.T) {
	s := New(Config{})
	cases := []struct {
		value        float64
		high, medium bool
	}{
		{0.71, true, false},
		{0.70, false, true}, // exactly at the high threshold stays medium
		{0.51, false, true},
		{0.50, false, false},
		{0.20, false, false},
	}
	for _, tc := range cases {
		rec := s.Score(section.TypeGeneric,
			avail(score.Visual, tc.value), avail(score.Interaction, tc.value))
		if rec.High != tc.high || rec.Medium != tc.medium {
			t.Errorf("value %v: high=%v medium=%v, want %v/%v",
				tc.value, rec.High, rec.Medium, tc.high, tc.medium)
		}
	}
}
