// Package convergence folds the per-pair dimension scores into a single
// per-section convergence record. Convergence is the mean over the
// dimensions that actually produced a value; unavailable dimensions are
// excluded from the mean rather than dragged in as zeros.
package convergence

import (
	"github.com/hazyhaar/plagiat/score"
	"github.com/hazyhaar/plagiat/section"
)

// Config holds the convergence band thresholds.
type Config struct {
	// HighThreshold: convergence strictly above this is "high". Default: 0.70.
	HighThreshold float64 `yaml:"high_threshold"`

	// MediumThreshold: convergence strictly above this (and not high) is
	// "medium". Default: 0.50.
	MediumThreshold float64 `yaml:"medium_threshold"`
}

func (c *Config) defaults() {
	if c.HighThreshold <= 0 {
		c.HighThreshold = 0.70
	}
	if c.MediumThreshold <= 0 {
		c.MediumThreshold = 0.50
	}
}

// Record is the per-section convergence result.
type Record struct {
	SectionType section.Type         `json:"type"`
	Visual      *score.DimensionScore `json:"visual,omitempty"`
	Interaction *score.DimensionScore `json:"interaction,omitempty"`

	// Score is the mean of the available dimensions. Zero when Unscored.
	Score float64 `json:"convergence"`

	// Partial marks a record where only one of the two dimensions
	// contributed a value.
	Partial bool `json:"partial,omitempty"`

	// Unscored marks a record where neither dimension produced a value.
	Unscored bool `json:"unscored,omitempty"`

	High   bool `json:"-"`
	Medium bool `json:"-"`
}

// Scorer computes convergence records.
type Scorer struct {
	cfg Config
}

// New creates a Scorer.
func New(cfg Config) *Scorer {
	cfg.defaults()
	return &Scorer{cfg: cfg}
}

// Score combines the visual and interaction dimensions of one pair.
func (s *Scorer) Score(sectionType section.Type, visual, interaction score.DimensionScore) Record {
	rec := Record{
		SectionType: sectionType,
		Visual:      &visual,
		Interaction: &interaction,
	}

	var sum float64
	var n int
	if !visual.Unavailable {
		sum += visual.Value
		n++
	}
	if !interaction.Unavailable {
		sum += interaction.Value
		n++
	}

	switch n {
	case 0:
		rec.Unscored = true
		return rec
	case 1:
		rec.Partial = true
	}

	rec.Score = sum / float64(n)
	rec.High = rec.Score > s.cfg.HighThreshold
	rec.Medium = !rec.High && rec.Score > s.cfg.MediumThreshold
	return rec
}
