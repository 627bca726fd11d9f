// Package score defines the similarity measurement shared by every
// analyzer: a dimension tag, a value in [0,1], optional free-text
// evidence, and flags for degraded or missing measurements.
package score

// Dimension identifies which signal produced a score. The set is closed;
// consumers switch exhaustively over it.
type Dimension string

const (
	Structural  Dimension = "structural"
	Semantic    Dimension = "semantic"
	Visual      Dimension = "visual"
	Interaction Dimension = "interaction"
)

// DimensionScore is one similarity measurement between two documents or
// two matched sections.
//
// Unavailable scores must never be blended into aggregates as if they
// were 0 or 1 — consumers omit them from averages.
type DimensionScore struct {
	Dimension Dimension `json:"dimension"`
	Value     float64   `json:"value"`
	Evidence  string    `json:"evidence,omitempty"`

	// Unavailable marks a measurement the producing analyzer could not
	// make (external service down, region not found).
	Unavailable bool `json:"unavailable,omitempty"`

	// Derived marks a degraded-but-usable estimate obtained from a weaker
	// signal (semantic falling back to structural).
	Derived bool `json:"derived,omitempty"`
}

// Unavailable returns a DimensionScore carrying no usable value.
func Unavailable(dim Dimension, evidence string) DimensionScore {
	return DimensionScore{Dimension: dim, Evidence: evidence, Unavailable: true}
}

// Clamp bounds v to [0,1]. Analyzers apply it before publishing a value so
// float accumulation noise never leaks out of range.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
