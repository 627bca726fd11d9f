// Package structural compares raw structural and style patterns between
// two whole documents. Structural copying (templated boilerplate, shared
// build tooling) is a document-level signal, not a regional one, so this
// analyzer never looks at individual sections.
package structural

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/plagiat/page"
	"github.com/hazyhaar/plagiat/score"
)

// Config tunes the structural analyzer.
type Config struct {
	// MinElements is the element count below which a document is treated
	// as having no comparable structure (fetch failures yielding empty
	// markup must not produce a spuriously high or low score). Default: 5.
	MinElements int `yaml:"min_elements"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MinElements <= 0 {
		c.MinElements = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Analyzer computes whole-document structural similarity.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{cfg: cfg}
}

// Compare scores structural similarity between two documents: markup
// patterns (tag and class frequency, tag-sequence shingles, tree size)
// and declared style patterns (property and selector usage), blended with
// equal weight. Identical profiles score exactly 1.0.
func (a *Analyzer) Compare(original, candidate *page.Document) score.DimensionScore {
	po := buildProfile(original)
	pc := buildProfile(candidate)

	if po.elements < a.cfg.MinElements || pc.elements < a.cfg.MinElements {
		return score.Unavailable(score.Structural,
			fmt.Sprintf("near-zero structural content (%d vs %d elements)", po.elements, pc.elements))
	}

	// Identical profiles short-circuit to exactly 1.0, which keeps the
	// self-comparison case free of float accumulation noise.
	if reflect.DeepEqual(po, pc) {
		return score.DimensionScore{
			Dimension: score.Structural,
			Value:     1.0,
			Evidence:  "identical structural profile",
		}
	}

	markup := markupSimilarity(po, pc)

	styleAvailable := len(po.styleProps) > 0 || len(pc.styleProps) > 0 ||
		len(po.styleSelectors) > 0 || len(pc.styleSelectors) > 0
	if !styleAvailable {
		return score.DimensionScore{
			Dimension: score.Structural,
			Value:     score.Clamp(markup),
			Evidence:  fmt.Sprintf("markup %.2f (no declared styles on either document)", markup),
		}
	}

	style := 0.5*cosine(po.styleProps, pc.styleProps) + 0.5*cosine(po.styleSelectors, pc.styleSelectors)
	value := (markup + style) / 2

	return score.DimensionScore{
		Dimension: score.Structural,
		Value:     score.Clamp(value),
		Evidence:  fmt.Sprintf("markup %.2f, style %.2f", markup, style),
	}
}

// profile is the structural fingerprint of one document.
type profile struct {
	tags           map[string]int
	classes        map[string]int
	trigrams       map[string]struct{}
	elements       int
	maxDepth       int
	styleProps     map[string]int
	styleSelectors map[string]int
}

func buildProfile(doc *page.Document) profile {
	p := profile{
		tags:     make(map[string]int),
		classes:  make(map[string]int),
		trigrams: make(map[string]struct{}),
	}

	var sequence []string
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			p.elements++
			p.tags[n.Data]++
			sequence = append(sequence, n.Data)
			if depth > p.maxDepth {
				p.maxDepth = depth
			}
			for _, at := range n.Attr {
				if at.Key == "class" {
					for _, cls := range strings.Fields(at.Val) {
						p.classes[cls]++
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	walk(doc.Root(), 0)

	for i := 0; i+2 < len(sequence); i++ {
		p.trigrams[sequence[i]+">"+sequence[i+1]+">"+sequence[i+2]] = struct{}{}
	}

	p.styleProps, p.styleSelectors = styleProfile(doc.Styles)
	return p
}

func markupSimilarity(a, b profile) float64 {
	sizeSim := (ratio(a.elements, b.elements) + ratio(a.maxDepth, b.maxDepth)) / 2
	return 0.35*cosine(a.tags, b.tags) +
		0.25*cosine(a.classes, b.classes) +
		0.25*jaccard(a.trigrams, b.trigrams) +
		0.15*sizeSim
}

var propRe = regexp.MustCompile(`([a-zA-Z-]{2,})\s*:`)

// styleProfile tokenizes declared style text into property-name and
// selector-token histograms. This is deliberately not a CSS parser:
// frequency of vocabulary is the signal, not rule semantics.
func styleProfile(styles string) (props, selectors map[string]int) {
	props = make(map[string]int)
	selectors = make(map[string]int)

	for _, m := range propRe.FindAllStringSubmatch(styles, -1) {
		props[strings.ToLower(m[1])]++
	}

	for _, block := range strings.Split(styles, "}") {
		idx := strings.IndexByte(block, '{')
		if idx < 0 {
			continue
		}
		for _, tok := range strings.Fields(block[:idx]) {
			tok = strings.Trim(tok, ",")
			if tok != "" && tok != ">" && tok != "+" && tok != "~" {
				selectors[strings.ToLower(tok)]++
			}
		}
	}
	return props, selectors
}

// cosine computes cosine similarity over sparse frequency histograms.
// Two empty histograms are identical (1.0); one empty histogram against a
// populated one shares nothing (0.0).
func cosine(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if maps.Equal(a, b) {
		return 1
	}
	// Summation follows sorted key order so repeated runs accumulate
	// floats identically.
	var dot, normA, normB float64
	for _, k := range slices.Sorted(maps.Keys(a)) {
		va := float64(a[k])
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * float64(vb)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(b)) {
		vb := float64(b[k])
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	shared := 0
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}

func ratio(a, b int) float64 {
	hi := max(a, b, 1)
	lo := min(a, b)
	if lo < 0 {
		lo = 0
	}
	return float64(lo) / float64(hi)
}
