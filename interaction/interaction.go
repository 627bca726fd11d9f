// Package interaction extracts a behavioral fingerprint per section —
// interactive element counts, animation/transition indicators, and stable
// per-element interaction identifiers emitted by page-builder runtimes —
// and compares fingerprints between matched sections.
//
// Stable identifiers (Webflow-style data-w-id and friends) are expected
// to be globally unique per authoring session. Their reappearance across
// two independently authored pages is effectively proof of copy-paste,
// so any shared identifier forces the score to 1.0.
package interaction

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/plagiat/score"
	"github.com/hazyhaar/plagiat/section"
)

// interactiveSelector matches elements a visitor can act on.
const interactiveSelector = "a, button, input, select, textarea, [onclick], [role=button]"

// Config tunes fingerprint extraction.
type Config struct {
	// IDAttributes lists the attributes that carry stable interaction
	// identifiers. Default: data-w-id, data-ix, data-ix2-id.
	IDAttributes []string `yaml:"id_attributes"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if len(c.IDAttributes) == 0 {
		c.IDAttributes = []string{"data-w-id", "data-ix", "data-ix2-id"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fingerprint is the behavioral signature of one section.
type Fingerprint struct {
	InteractiveCount int
	HasAnimation     bool
	HasTransition    bool
	IDs              map[string]struct{}
}

// Analyzer extracts and compares fingerprints.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{cfg: cfg}
}

// Fingerprint builds the behavioral signature of a serialized section.
func (a *Analyzer) Fingerprint(sectionHTML string) (Fingerprint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sectionHTML))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("interaction: parse section: %w", err)
	}

	fp := Fingerprint{IDs: make(map[string]struct{})}
	fp.InteractiveCount = doc.Find(interactiveSelector).Length()

	for _, attrName := range a.cfg.IDAttributes {
		doc.Find("[" + attrName + "]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attrName); ok && v != "" {
				fp.IDs[v] = struct{}{}
			}
		})
	}

	lower := strings.ToLower(sectionHTML)
	fp.HasAnimation = strings.Contains(lower, "animation") ||
		strings.Contains(lower, "@keyframes") ||
		strings.Contains(lower, "data-aos") ||
		strings.Contains(lower, "animate")
	fp.HasTransition = strings.Contains(lower, "transition")

	return fp, nil
}

// SharedIdentifiers reports whether s is an interaction score forced to
// 1.0 by shared stable identifiers.
func SharedIdentifiers(s score.DimensionScore) bool {
	return s.Dimension == score.Interaction && !s.Unavailable &&
		s.Value == 1.0 && strings.HasSuffix(s.Evidence, "identical interaction identifiers")
}

// Compare scores behavioral similarity of a matched pair:
//
//	id_overlap        = |shared| / |union|   (0 if both sets empty)
//	count_similarity  = 1 - |ca-cb| / max(ca, cb, 1)
//	score             = 0.6*id_overlap + 0.4*count_similarity
//
// except that any shared stable identifier overrides the formula with 1.0.
func (a *Analyzer) Compare(pair section.Pair) score.DimensionScore {
	fa, err := a.Fingerprint(pair.Original.HTML)
	if err != nil {
		return score.Unavailable(score.Interaction, err.Error())
	}
	fb, err := a.Fingerprint(pair.Candidate.HTML)
	if err != nil {
		return score.Unavailable(score.Interaction, err.Error())
	}

	shared := 0
	for id := range fa.IDs {
		if _, ok := fb.IDs[id]; ok {
			shared++
		}
	}

	if shared > 0 {
		return score.DimensionScore{
			Dimension: score.Interaction,
			Value:     1.0,
			Evidence:  fmt.Sprintf("%d identical interaction identifiers", shared),
		}
	}

	union := len(fa.IDs) + len(fb.IDs) - shared
	idOverlap := 0.0
	if union > 0 {
		idOverlap = float64(shared) / float64(union)
	}

	ca, cb := fa.InteractiveCount, fb.InteractiveCount
	diff := ca - cb
	if diff < 0 {
		diff = -diff
	}
	countSim := 1 - float64(diff)/float64(max(ca, cb, 1))

	value := 0.6*idOverlap + 0.4*countSim
	return score.DimensionScore{
		Dimension: score.Interaction,
		Value:     score.Clamp(value),
		Evidence: fmt.Sprintf("id overlap %.2f, count similarity %.2f (%d vs %d interactive elements)",
			idOverlap, countSim, ca, cb),
	}
}
