// Package section detects semantically typed regions (hero, features,
// testimonials, cta, footer, generic) inside one page and pairs regions
// between two pages for cross-document comparison.
package section

// Type tags a detected region. The set is closed: downstream consumers
// switch exhaustively over it, so a new type is a deliberate code change
// rather than a stray string.
type Type string

const (
	TypeHero         Type = "hero"
	TypeFeatures     Type = "features"
	TypeTestimonials Type = "testimonials"
	TypeCTA          Type = "cta"
	TypeFooter       Type = "footer"
	TypeGeneric      Type = "generic"
)

// Valid reports whether t is a known section type.
func (t Type) Valid() bool {
	switch t {
	case TypeHero, TypeFeatures, TypeTestimonials, TypeCTA, TypeFooter, TypeGeneric:
		return true
	}
	return false
}

// Section is a detected region within a document. Created by the Detector;
// read-only afterward.
type Section struct {
	// ID is synthetic and unique within the document, e.g. "hero-14".
	ID string `json:"id"`

	Type Type `json:"type"`

	// PositionRatio is the region's element index divided by the total
	// element count, in [0,1]. Used for plausibility checks.
	PositionRatio float64 `json:"position_ratio"`

	// Locator is an absolute XPath sufficient to re-select the region on
	// the live page for screenshotting.
	Locator string `json:"locator"`

	// HTML is the serialized subtree, used for fingerprinting without
	// another page round-trip.
	HTML string `json:"-"`
}

// Pair is a matched (original, candidate) region of identical type.
type Pair struct {
	Original  Section `json:"original"`
	Candidate Section `json:"candidate"`
}

// Key identifies the pair inside one analysis run. Result maps are keyed
// by it so completion order never matters.
func (p Pair) Key() string {
	return p.Original.ID + "|" + p.Candidate.ID
}

// Match pairs sections between two documents by type.
//
// Originals are visited in document order; each takes the first candidate
// of the same type that has not been consumed by an earlier pair. The
// used-set guarantees no candidate appears in more than one pair.
// Sections with no same-typed counterpart are dropped silently — an
// unmatched region is not an error, it is simply not comparable.
func Match(original, candidate []Section) []Pair {
	var pairs []Pair
	used := make(map[string]bool, len(candidate))

	for _, orig := range original {
		for _, cand := range candidate {
			if cand.Type != orig.Type || used[cand.ID] {
				continue
			}
			used[cand.ID] = true
			pairs = append(pairs, Pair{Original: orig, Candidate: cand})
			break
		}
	}
	return pairs
}
