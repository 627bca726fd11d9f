package section

import (
	"strings"
	"testing"

	"github.com/hazyhaar/plagiat/page"
)

const landingMarkup = `<!doctype html>
<html><head><title>Acme</title></head><body>
<header class="hero"><h1>Ship faster</h1><p>Subtitle</p><a href="#" class="btn">Go</a></header>
<section class="features"><div>f1</div><div>f2</div><div>f3</div></section>
<section class="testimonials"><blockquote>great</blockquote><blockquote>superb</blockquote></section>
<section class="cta"><a href="#">Buy now</a></section>
<footer class="footer"><p>© Acme</p><nav><a href="#">Legal</a></nav></footer>
</body></html>`

func detect(t *testing.T, markup string) []Section {
	t.Helper()
	doc, err := page.Parse("https://example.com", markup)
	if err != nil {
		t.Fatal(err)
	}
	return NewDetector(DetectorConfig{}).Detect(doc)
}

func byType(sections []Section) map[Type]Section {
	m := make(map[Type]Section)
	for _, s := range sections {
		m[s.Type] = s
	}
	return m
}

func TestDetectTypedSections(t *testing.T) {
	sections := detect(t, landingMarkup)
	m := byType(sections)

	for _, typ := range []Type{TypeHero, TypeFeatures, TypeTestimonials, TypeCTA, TypeFooter} {
		if _, ok := m[typ]; !ok {
			t.Errorf("missing section type %q", typ)
		}
	}

	// Position plausibility invariants.
	if hero, ok := m[TypeHero]; ok && hero.PositionRatio > 0.30 {
		t.Errorf("hero position_ratio = %f, want <= 0.30", hero.PositionRatio)
	}
	if footer, ok := m[TypeFooter]; ok && footer.PositionRatio < 0.70 {
		t.Errorf("footer position_ratio = %f, want >= 0.70", footer.PositionRatio)
	}

	// Locators must be absolute XPaths.
	for _, s := range sections {
		if !strings.HasPrefix(s.Locator, "/html/body") {
			t.Errorf("section %s locator %q is not rooted at /html/body", s.ID, s.Locator)
		}
		if s.HTML == "" {
			t.Errorf("section %s has no serialized subtree", s.ID)
		}
	}
}

func TestDetectOnePerType(t *testing.T) {
	// WHAT: two hero blocks yield a single hero section.
	// WHY: duplicate heroes corrupt downstream one-to-one matching.
	markup := `<html><body>
<div class="hero"><h1>First</h1></div>
<div class="hero"><h1>Second</h1></div>
<section class="features"><p>a</p><p>b</p></section>
<footer><p>x</p><p>y</p><p>z</p><p>w</p></footer>
</body></html>`
	sections := detect(t, markup)

	heroes := 0
	for _, s := range sections {
		if s.Type == TypeHero {
			heroes++
		}
	}
	if heroes != 1 {
		t.Fatalf("hero sections = %d, want 1", heroes)
	}
}

func TestDetectLateHeroRejected(t *testing.T) {
	// A "hero" in the last third of the document is not a hero.
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for range 20 {
		sb.WriteString("<p>filler</p>")
	}
	sb.WriteString(`<div class="hero"><h1>too late</h1></div></body></html>`)

	for _, s := range detect(t, sb.String()) {
		if s.Type == TypeHero {
			t.Fatalf("late hero accepted at ratio %f", s.PositionRatio)
		}
	}
}

func TestDetectEmptyDocument(t *testing.T) {
	// WHAT: a document with no classifiable regions succeeds with an
	// empty list rather than an error.
	sections := detect(t, "<html><body><p>hello</p></body></html>")
	if len(sections) != 0 {
		t.Fatalf("sections = %d, want 0", len(sections))
	}
}

func TestDetectGenericFallback(t *testing.T) {
	// Fewer than two typed sections: large unclassified body-level
	// regions are promoted to generic so a minimal comparison set exists.
	markup := `<html><body>
<div><p>a</p><p>b</p><p>c</p><p>d</p><span>e</span><span>f</span><span>g</span><span>h</span></div>
<div><p>a</p><p>b</p><p>c</p><p>d</p><span>e</span><span>f</span><span>g</span><span>h</span></div>
</body></html>`
	sections := detect(t, markup)

	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2 generic", len(sections))
	}
	for _, s := range sections {
		if s.Type != TypeGeneric {
			t.Errorf("section %s type = %q, want generic", s.ID, s.Type)
		}
	}
}

func TestMatchPairsByType(t *testing.T) {
	original := []Section{
		{ID: "hero-4", Type: TypeHero},
		{ID: "features-8", Type: TypeFeatures},
		{ID: "footer-17", Type: TypeFooter},
	}
	candidate := []Section{
		{ID: "features-2", Type: TypeFeatures},
		{ID: "hero-1", Type: TypeHero},
		{ID: "cta-9", Type: TypeCTA},
	}

	pairs := Match(original, candidate)
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	if pairs[0].Original.ID != "hero-4" || pairs[0].Candidate.ID != "hero-1" {
		t.Errorf("pair 0 = %s|%s", pairs[0].Original.ID, pairs[0].Candidate.ID)
	}
	// footer and cta have no counterpart: dropped silently.
}

func TestMatchNoDoubleUse(t *testing.T) {
	original := []Section{
		{ID: "generic-1", Type: TypeGeneric},
		{ID: "generic-5", Type: TypeGeneric},
		{ID: "generic-9", Type: TypeGeneric},
	}
	candidate := []Section{
		{ID: "generic-2", Type: TypeGeneric},
		{ID: "generic-6", Type: TypeGeneric},
	}

	pairs := Match(original, candidate)
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}

	seen := make(map[string]bool)
	for _, p := range pairs {
		if seen[p.Candidate.ID] {
			t.Fatalf("candidate %s used twice", p.Candidate.ID)
		}
		seen[p.Candidate.ID] = true
	}
}

func TestMatchEarliestOrderTieBreak(t *testing.T) {
	// WHAT: among several unconsumed same-typed candidates, the earliest
	// in document order wins. This is the only tie-break rule.
	original := []Section{{ID: "cta-3", Type: TypeCTA}}
	candidate := []Section{
		{ID: "cta-2", Type: TypeCTA},
		{ID: "cta-8", Type: TypeCTA},
	}

	pairs := Match(original, candidate)
	if len(pairs) != 1 || pairs[0].Candidate.ID != "cta-2" {
		t.Fatalf("expected earliest candidate cta-2, got %+v", pairs)
	}
}

func TestMatchDeterministic(t *testing.T) {
	original := []Section{
		{ID: "hero-1", Type: TypeHero},
		{ID: "cta-5", Type: TypeCTA},
	}
	candidate := []Section{
		{ID: "cta-4", Type: TypeCTA},
		{ID: "hero-2", Type: TypeHero},
	}

	first := Match(original, candidate)
	for range 10 {
		again := Match(original, candidate)
		if len(again) != len(first) {
			t.Fatal("match is not deterministic")
		}
		for i := range again {
			if again[i] != first[i] {
				t.Fatal("match is not deterministic")
			}
		}
	}
}
