// CLAUDE:SUMMARY Verdict generator: priority-ordered classification ladder over convergence records plus confidence derivation.
// Package verdict turns the document-level and per-section scores into
// the final classification. The five patterns are evaluated in strict
// priority order; confidence reflects both distance from the decision
// boundary and how much of the signal was actually available.
package verdict

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/plagiat/convergence"
	"github.com/hazyhaar/plagiat/interaction"
	"github.com/hazyhaar/plagiat/score"
)

// Pattern classifies how the observed similarity arose.
type Pattern string

const (
	CopyPaste       Pattern = "copy_paste"
	Reconstructed   Pattern = "reconstructed"
	Inspired        Pattern = "inspired"
	SharedFramework Pattern = "shared_framework"
	Unrelated       Pattern = "unrelated"
)

// Severity ranks the verdict: none < minor < major.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// Rank returns the ordering of a severity for monotonicity comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// CostEstimate counts the external calls one analysis run issued.
type CostEstimate struct {
	SemanticCalls   int `json:"semantic_calls"`
	RendererCalls   int `json:"renderer_calls"`
	ComparatorCalls int `json:"comparator_calls"`
}

// Verdict is the final, immutable output of one analysis run.
type Verdict struct {
	Pattern    Pattern              `json:"pattern"`
	Severity   Severity             `json:"severity"`
	Confidence float64              `json:"confidence"`
	Reasoning  []string             `json:"reasoning"`
	Sections   []convergence.Record `json:"sections"`

	CostEstimate *CostEstimate `json:"cost_estimate,omitempty"`

	// DataUnavailable is set when no dimension on either level produced
	// a usable value. The CLI maps it to exit code 2.
	DataUnavailable bool `json:"data_unavailable,omitempty"`
}

// Config holds the classification thresholds.
type Config struct {
	// HighThreshold mirrors the convergence high band. Default: 0.70.
	HighThreshold float64 `yaml:"high_threshold"`

	// MediumThreshold mirrors the convergence medium band. Default: 0.50.
	MediumThreshold float64 `yaml:"medium_threshold"`

	// FrameworkThreshold: structural or semantic above this with low
	// convergence everywhere reads as shared boilerplate. Default: 0.70.
	FrameworkThreshold float64 `yaml:"framework_threshold"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.HighThreshold <= 0 {
		c.HighThreshold = 0.70
	}
	if c.MediumThreshold <= 0 {
		c.MediumThreshold = 0.50
	}
	if c.FrameworkThreshold <= 0 {
		c.FrameworkThreshold = 0.70
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Generator produces Verdicts.
type Generator struct {
	cfg Config
}

// New creates a Generator.
func New(cfg Config) *Generator {
	cfg.defaults()
	return &Generator{cfg: cfg}
}

// Generate classifies one analysis run. Records must be in document
// order; their order is preserved in Sections and Reasoning.
func (g *Generator) Generate(structural, semantic score.DimensionScore, records []convergence.Record, cost *CostEstimate) Verdict {
	v := Verdict{
		Sections:     records,
		CostEstimate: cost,
	}

	availability := availabilityFactor(structural, semantic, records)
	if availability == 0 {
		v.Pattern = Unrelated
		v.Severity = SeverityNone
		v.Confidence = 0.0
		v.DataUnavailable = true
		v.Reasoning = []string{"no dimension produced a usable score; all collaborators unavailable"}
		return v
	}

	v.Reasoning = sectionReasoning(records)

	var high, mediumOrHigher int
	var highSum float64
	var bestMedium float64
	for _, rec := range records {
		if rec.Unscored {
			continue
		}
		if rec.High {
			high++
			highSum += rec.Score
		}
		if rec.High || rec.Medium {
			mediumOrHigher++
			if rec.Score > bestMedium {
				bestMedium = rec.Score
			}
		}
	}

	switch {
	case sharedIdentifierPair(records):
		v.Pattern = CopyPaste
		v.Severity = SeverityMajor
		// Floor at 0.95; the availability factor can only add on top.
		v.Confidence = score.Clamp(0.95 + 0.04*availability)
		v.Reasoning = append(v.Reasoning,
			"shared stable interaction identifiers indicate direct duplication")

	case high >= 2:
		v.Pattern = Reconstructed
		v.Severity = SeverityMajor
		mean := highSum / float64(high)
		v.Confidence = boundaryConfidence(mean, g.cfg.HighThreshold, availability)
		v.Reasoning = append(v.Reasoning,
			fmt.Sprintf("%d sections at high convergence", high))

	case mediumOrHigher >= 1:
		v.Pattern = Inspired
		v.Severity = SeverityMinor
		v.Confidence = boundaryConfidence(bestMedium, g.cfg.MediumThreshold, availability)
		v.Reasoning = append(v.Reasoning,
			fmt.Sprintf("%d sections at medium or higher convergence", mediumOrHigher))

	case documentLevel(structural, semantic) > g.cfg.FrameworkThreshold:
		v.Pattern = SharedFramework
		v.Severity = SeverityMinor
		v.Confidence = boundaryConfidence(documentLevel(structural, semantic), g.cfg.FrameworkThreshold, availability)
		v.Reasoning = append(v.Reasoning,
			"elevated code similarity without convergent sections suggests shared boilerplate")

	default:
		v.Pattern = Unrelated
		v.Severity = SeverityNone
		// Distance below the medium band: the lower everything sits, the
		// more certain the non-finding.
		worst := documentLevel(structural, semantic)
		if bestMedium > worst {
			worst = bestMedium
		}
		base := (g.cfg.MediumThreshold - worst) / g.cfg.MediumThreshold
		v.Confidence = score.Clamp((0.5 + 0.5*score.Clamp(base)) * availability)
		v.Reasoning = append(v.Reasoning, "no section reached medium convergence")
	}

	v.Reasoning = append(v.Reasoning, documentReasoning(structural, semantic)...)
	return v
}

// boundaryConfidence maps distance above a threshold into (0.5, 1.0],
// scaled down by the availability factor.
func boundaryConfidence(value, threshold, availability float64) float64 {
	span := 1.0 - threshold
	if span <= 0 {
		return score.Clamp(availability)
	}
	base := (value - threshold) / span
	return score.Clamp((0.5 + 0.5*score.Clamp(base)) * availability)
}

// availabilityFactor is the fraction of dimension scores that produced a
// value, over the document pair and every section pair.
func availabilityFactor(structural, semantic score.DimensionScore, records []convergence.Record) float64 {
	total, avail := 2, 0
	if !structural.Unavailable {
		avail++
	}
	if !semantic.Unavailable {
		avail++
	}
	for _, rec := range records {
		total += 2
		if rec.Visual != nil && !rec.Visual.Unavailable {
			avail++
		}
		if rec.Interaction != nil && !rec.Interaction.Unavailable {
			avail++
		}
	}
	return float64(avail) / float64(total)
}

func sharedIdentifierPair(records []convergence.Record) bool {
	for _, rec := range records {
		if rec.Interaction != nil && interaction.SharedIdentifiers(*rec.Interaction) {
			return true
		}
	}
	return false
}

func documentLevel(structural, semantic score.DimensionScore) float64 {
	v := 0.0
	if !structural.Unavailable && structural.Value > v {
		v = structural.Value
	}
	if !semantic.Unavailable && semantic.Value > v {
		v = semantic.Value
	}
	return v
}

// sectionReasoning renders one line per record, in document order.
func sectionReasoning(records []convergence.Record) []string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		switch {
		case rec.Unscored:
			lines = append(lines, fmt.Sprintf("%s: no visual or interaction signal available", rec.SectionType))
		case rec.Partial:
			avail, missing := rec.Visual, "interaction"
			if rec.Visual.Unavailable {
				avail, missing = rec.Interaction, "visual"
			}
			lines = append(lines, fmt.Sprintf("%s: convergence %.3g (%s %.3g only, %s unavailable)",
				rec.SectionType, rec.Score, avail.Dimension, avail.Value, missing))
		default:
			lines = append(lines, fmt.Sprintf("%s: convergence %.3g (visual %.3g, interaction %.3g)",
				rec.SectionType, rec.Score, rec.Visual.Value, rec.Interaction.Value))
		}
	}
	return lines
}

// documentReasoning renders the structural and semantic facts, naming
// fallbacks and unavailability so a reviewer can weigh the result.
func documentReasoning(structural, semantic score.DimensionScore) []string {
	var lines []string
	if structural.Unavailable {
		lines = append(lines, "structural score unavailable: "+structural.Evidence)
	} else {
		lines = append(lines, fmt.Sprintf("structural similarity %.3g", structural.Value))
	}
	switch {
	case semantic.Unavailable:
		lines = append(lines, "semantic score unavailable: "+semantic.Evidence)
	case semantic.Derived:
		lines = append(lines, fmt.Sprintf("semantic similarity %.3g (derived from structural fallback)", semantic.Value))
	default:
		lines = append(lines, fmt.Sprintf("semantic similarity %.3g", semantic.Value))
	}
	return lines
}
