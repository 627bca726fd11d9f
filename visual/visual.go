// Package visual scores rendered-layout similarity for matched section
// pairs. It depends on two external collaborators: a page renderer that
// returns a raster image of a region, and an image comparator that judges
// two images against a short rubric.
package visual

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/plagiat/score"
	"github.com/hazyhaar/plagiat/section"
)

// DefaultRubric is the aspect list sent to the comparator.
const DefaultRubric = "layout, spacing, typography, color"

// Renderer captures a raster screenshot of one page region.
type Renderer interface {
	// CaptureRegion returns PNG bytes for the region selected by locator
	// on the live page, or an error when the region cannot be found or
	// the render times out.
	CaptureRegion(ctx context.Context, pageURL, locator string) ([]byte, error)
}

// Judgment is the comparator's verdict on two images.
type Judgment struct {
	Score    float64
	Evidence string
}

// Comparator judges visual similarity between two raster images.
type Comparator interface {
	Compare(ctx context.Context, imageA, imageB []byte, rubric string) (Judgment, error)
}

// Config tunes the visual analyzer.
type Config struct {
	// Rubric passed to the comparator. Default: DefaultRubric.
	Rubric string `yaml:"rubric"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Rubric == "" {
		c.Rubric = DefaultRubric
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Analyzer scores one section pair at a time.
type Analyzer struct {
	renderer   Renderer
	comparator Comparator
	cfg        Config
}

// New creates an Analyzer.
func New(r Renderer, c Comparator, cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{renderer: r, comparator: c, cfg: cfg}
}

// Compare captures both regions of the pair and asks the comparator for a
// judgment. Any capture or comparison failure yields an Unavailable score
// — the pair is still reported, just without a visual contribution.
func (a *Analyzer) Compare(ctx context.Context, pair section.Pair, originalURL, candidateURL string) score.DimensionScore {
	imgA, err := a.renderer.CaptureRegion(ctx, originalURL, pair.Original.Locator)
	if err != nil {
		a.cfg.Logger.Warn("visual: capture failed",
			"url", originalURL, "section", pair.Original.ID, "error", err)
		return score.Unavailable(score.Visual,
			fmt.Sprintf("screenshot failed for original %s: %v", pair.Original.Type, err))
	}

	imgB, err := a.renderer.CaptureRegion(ctx, candidateURL, pair.Candidate.Locator)
	if err != nil {
		a.cfg.Logger.Warn("visual: capture failed",
			"url", candidateURL, "section", pair.Candidate.ID, "error", err)
		return score.Unavailable(score.Visual,
			fmt.Sprintf("screenshot failed for candidate %s: %v", pair.Candidate.Type, err))
	}

	judgment, err := a.comparator.Compare(ctx, imgA, imgB, a.cfg.Rubric)
	if err != nil {
		a.cfg.Logger.Warn("visual: comparator failed",
			"section", pair.Original.ID, "error", err)
		return score.Unavailable(score.Visual,
			fmt.Sprintf("image comparison failed for %s: %v", pair.Original.Type, err))
	}

	return score.DimensionScore{
		Dimension: score.Visual,
		Value:     score.Clamp(judgment.Score),
		Evidence:  judgment.Evidence,
	}
}
