// CLAUDE:SUMMARY Walks the DOM in document order, typing regions by tag/class keywords with position plausibility filters.
package section

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/plagiat/page"
)

// DetectorConfig tunes region detection. The position cutoffs are
// empirical: a hero that appears past the first third of the document is
// not a hero, a footer before the final third is not a footer.
type DetectorConfig struct {
	// HeroMaxPosition rejects hero candidates whose position ratio
	// exceeds it. Default: 0.30.
	HeroMaxPosition float64 `yaml:"hero_max_position"`

	// FooterMinPosition rejects footer candidates whose position ratio is
	// below it. Default: 0.70.
	FooterMinPosition float64 `yaml:"footer_min_position"`

	// MinTypedSections is the number of typed sections below which the
	// generic fallback kicks in, guaranteeing a minimal comparison set.
	// Default: 2.
	MinTypedSections int `yaml:"min_typed_sections"`

	// MaxGenericSections caps how many generic fallback regions are
	// added. Default: 3.
	MaxGenericSections int `yaml:"max_generic_sections"`

	// MinGenericElements is the minimum descendant element count for a
	// region to qualify as a generic fallback. Default: 8.
	MinGenericElements int `yaml:"min_generic_elements"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *DetectorConfig) defaults() {
	if c.HeroMaxPosition <= 0 {
		c.HeroMaxPosition = 0.30
	}
	if c.FooterMinPosition <= 0 {
		c.FooterMinPosition = 0.70
	}
	if c.MinTypedSections <= 0 {
		c.MinTypedSections = 2
	}
	if c.MaxGenericSections <= 0 {
		c.MaxGenericSections = 3
	}
	if c.MinGenericElements <= 0 {
		c.MinGenericElements = 8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Detector proposes typed regions for one document.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg}
}

type candidate struct {
	node  *html.Node
	typ   Type
	index int
	xpath string
}

// Detect scans structural nodes in document order and returns the
// accepted regions, also in document order. A document that yields no
// regions returns an empty list — callers decide whether that means
// "no comparable structure".
//
// At most one section per type is accepted (generic may repeat): once a
// type has a section, later candidates of that type are skipped so
// duplicate heroes or footers cannot corrupt downstream matching.
func (d *Detector) Detect(doc *page.Document) []Section {
	total := 0
	var typed []candidate
	var containers []candidate // body-level regions, generic fallback pool

	var walk func(n *html.Node, parentPath string, underBody bool)
	walk = func(n *html.Node, parentPath string, underBody bool) {
		if n.Type == html.ElementNode {
			idx := total
			total++
			xpath := elementXPath(n, parentPath)

			if typ, ok := classify(n); ok {
				typed = append(typed, candidate{node: n, typ: typ, index: idx, xpath: xpath})
			} else if underBody && isContainer(n.DataAtom) {
				containers = append(containers, candidate{node: n, typ: TypeGeneric, index: idx, xpath: xpath})
			}

			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, xpath, n.DataAtom == atom.Body)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, parentPath, underBody)
		}
	}
	walk(doc.Root(), "", false)

	if total == 0 {
		return nil
	}

	accepted := make(map[Type]bool)
	var out []candidate

	for _, c := range typed {
		if accepted[c.typ] {
			continue
		}
		ratio := float64(c.index) / float64(total)

		// Position plausibility.
		switch c.typ {
		case TypeHero:
			if ratio > d.cfg.HeroMaxPosition {
				d.cfg.Logger.Debug("section: hero rejected by position",
					"url", doc.URL, "ratio", ratio)
				continue
			}
		case TypeFooter:
			if ratio < d.cfg.FooterMinPosition {
				d.cfg.Logger.Debug("section: footer rejected by position",
					"url", doc.URL, "ratio", ratio)
				continue
			}
		}

		accepted[c.typ] = true
		out = append(out, c)
	}

	// Generic fallback: only when the typed harvest is too thin to
	// compare anything.
	if len(out) < d.cfg.MinTypedSections {
		added := 0
		for _, c := range containers {
			if added >= d.cfg.MaxGenericSections {
				break
			}
			if countElements(c.node) < d.cfg.MinGenericElements {
				continue
			}
			if containsNode(out, c.node) {
				continue
			}
			out = append(out, c)
			added++
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })

	sections := make([]Section, 0, len(out))
	for _, c := range out {
		var buf bytes.Buffer
		html.Render(&buf, c.node)
		sections = append(sections, Section{
			ID:            fmt.Sprintf("%s-%d", c.typ, c.index),
			Type:          c.typ,
			PositionRatio: float64(c.index) / float64(total),
			Locator:       c.xpath,
			HTML:          buf.String(),
		})
	}
	return sections
}

var (
	heroWords        = []string{"hero", "banner", "jumbotron", "masthead", "splash"}
	featureWords     = []string{"feature", "benefit", "service", "cards"}
	testimonialWords = []string{"testimonial", "review", "quote"}
	ctaWords         = []string{"cta", "call-to-action", "calltoaction", "signup", "sign-up", "subscribe", "get-started"}
	footerWords      = []string{"footer", "site-bottom"}
)

// classify assigns a section type to a container element from its tag and
// class/id vocabulary. Footer wins first so "footer-cta" blocks stay
// footers; hero beats the rest because hero markup routinely also carries
// cta vocabulary.
func classify(n *html.Node) (Type, bool) {
	if n.Type != html.ElementNode || !isContainer(n.DataAtom) {
		return "", false
	}
	attrs := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))

	switch {
	case n.DataAtom == atom.Footer || containsAny(attrs, footerWords):
		return TypeFooter, true
	case containsAny(attrs, heroWords):
		return TypeHero, true
	case containsAny(attrs, testimonialWords):
		return TypeTestimonials, true
	case containsAny(attrs, ctaWords):
		return TypeCTA, true
	case containsAny(attrs, featureWords):
		return TypeFeatures, true
	}
	return "", false
}

func isContainer(a atom.Atom) bool {
	switch a {
	case atom.Section, atom.Header, atom.Footer, atom.Div, atom.Article, atom.Main, atom.Aside:
		return true
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// elementXPath builds an absolute XPath segment for n under parentPath,
// indexed among same-tag element siblings.
func elementXPath(n *html.Node, parentPath string) string {
	name := n.Data
	switch n.DataAtom {
	case atom.Html:
		return "/html"
	case atom.Head:
		return "/html/head"
	case atom.Body:
		return "/html/body"
	}

	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == name {
			idx++
		}
	}
	return fmt.Sprintf("%s/%s[%d]", parentPath, name, idx)
}

func countElements(n *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return count
}

func containsNode(cands []candidate, n *html.Node) bool {
	for _, c := range cands {
		if c.node == n {
			return true
		}
	}
	return false
}
