package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/plagiat/cache"
	"github.com/hazyhaar/plagiat/dbopen"
	"github.com/hazyhaar/plagiat/engine"
	"github.com/hazyhaar/plagiat/horosafe"
	"github.com/hazyhaar/plagiat/interaction"
	"github.com/hazyhaar/plagiat/observability"
	"github.com/hazyhaar/plagiat/page"
	"github.com/hazyhaar/plagiat/section"
	"github.com/hazyhaar/plagiat/semantic"
	"github.com/hazyhaar/plagiat/structural"
	"github.com/hazyhaar/plagiat/verdict"
	"github.com/hazyhaar/plagiat/visual"
	_ "modernc.org/sqlite"
)

const landingMarkup = `<!doctype html>
<html><head><title>Acme</title>
<style>.hero{display:flex;color:#fff}.footer{padding:2rem}</style>
</head><body>
<header class="hero"><h1>Ship faster</h1><p>Subtitle</p>
<a href="#" class="btn" data-w-id="e4f1-a7b2">Get started</a></header>
<section class="features"><div data-w-id="77aa-01cd">f1</div><div>f2</div><div>f3</div></section>
<footer class="footer"><p>© Acme</p><nav><a href="#" data-w-id="c9d0-33ef">Legal</a></nav></footer>
</body></html>`

const blogMarkup = `<!doctype html>
<html><head><title>Notes</title></head><body>
<main class="post"><article><h2>Entry one</h2><p>text</p><p>more text</p></article>
<article><h2>Entry two</h2><p>body</p><time>2024</time></article></main>
<aside class="sidebar"><ul><li>tag</li><li>tag</li></ul></aside>
</body></html>`

// urlRenderer produces deterministic per-region bytes without a browser.
type urlRenderer struct{}

func (urlRenderer) CaptureRegion(_ context.Context, pageURL, locator string) ([]byte, error) {
	return []byte(pageURL + "|" + locator), nil
}

// fixedComparator scores identical captures 1.0 and everything else low.
type fixedComparator struct{ low float64 }

func (c fixedComparator) Compare(_ context.Context, a, b []byte, _ string) (visual.Judgment, error) {
	if bytes.Equal(a, b) {
		return visual.Judgment{Score: 1.0, Evidence: "identical images"}, nil
	}
	return visual.Judgment{Score: c.low, Evidence: "different layout"}, nil
}

func servePage(t *testing.T, markup string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(markup))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serveSimilarity(t *testing.T, similarity float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]float64{"score": similarity})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T, semanticURL string, opts ...engine.Option) *engine.Engine {
	t.Helper()
	fetcher := page.NewFetcher(page.FetchConfig{URLValidator: horosafe.CheckFormat})
	detector := section.NewDetector(section.DetectorConfig{})
	return engine.New(
		fetcher,
		detector,
		structural.New(structural.Config{}),
		semantic.New(semantic.Config{Endpoint: semanticURL}),
		visual.New(urlRenderer{}, fixedComparator{low: 0.2}, visual.Config{}),
		interaction.New(interaction.Config{}),
		engine.Config{},
		opts...,
	)
}

func TestAnalyzeSelfSimilarity(t *testing.T) {
	// WHAT: a document compared to itself is a copy-paste verdict with
	// every matched section at convergence 1.0.
	pageSrv := servePage(t, landingMarkup)
	semSrv := serveSimilarity(t, 1.0)

	e := newTestEngine(t, semSrv.URL)
	v, err := e.Analyze(context.Background(), pageSrv.URL, pageSrv.URL)
	if err != nil {
		t.Fatal(err)
	}

	if v.Pattern != verdict.CopyPaste || v.Severity != verdict.SeverityMajor {
		t.Fatalf("verdict = %s/%s", v.Pattern, v.Severity)
	}
	if v.Confidence < 0.95 {
		t.Fatalf("confidence = %v, want >= 0.95", v.Confidence)
	}
	if len(v.Sections) == 0 {
		t.Fatal("no section records")
	}
	for _, rec := range v.Sections {
		if rec.Score != 1.0 {
			t.Errorf("%s convergence = %v, want 1.0", rec.SectionType, rec.Score)
		}
	}
	joined := strings.Join(v.Reasoning, "\n")
	if !strings.Contains(joined, "structural similarity 1") {
		t.Errorf("reasoning = %q", joined)
	}
}

func TestAnalyzeDeterminism(t *testing.T) {
	pageA := servePage(t, landingMarkup)
	pageB := servePage(t, blogMarkup)
	semSrv := serveSimilarity(t, 0.40)

	e := newTestEngine(t, semSrv.URL)
	v1, err := e.Analyze(context.Background(), pageA.URL, pageB.URL)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := e.Analyze(context.Background(), pageA.URL, pageB.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v1, v2) {
		t.Fatalf("verdicts differ:\n%+v\n%+v", v1, v2)
	}
}

func TestAnalyzeUnrelated(t *testing.T) {
	pageA := servePage(t, landingMarkup)
	pageB := servePage(t, blogMarkup)
	semSrv := serveSimilarity(t, 0.30)

	e := newTestEngine(t, semSrv.URL)
	v, err := e.Analyze(context.Background(), pageA.URL, pageB.URL)
	if err != nil {
		t.Fatal(err)
	}
	if v.Severity != verdict.SeverityNone {
		t.Fatalf("severity = %s, verdict %+v", v.Severity, v)
	}
}

func TestAnalyzeInvalidInput(t *testing.T) {
	semSrv := serveSimilarity(t, 0.5)
	e := newTestEngine(t, semSrv.URL)

	for _, bad := range []string{"::not-a-url", "ftp://example.com/x", ""} {
		_, err := e.Analyze(context.Background(), bad, "https://example.com")
		if !errors.Is(err, engine.ErrInvalidInput) {
			t.Errorf("url %q: err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestAnalyzeFetchFailureAborts(t *testing.T) {
	pageA := servePage(t, landingMarkup)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)
	semSrv := serveSimilarity(t, 0.5)

	e := newTestEngine(t, semSrv.URL)
	if _, err := e.Analyze(context.Background(), pageA.URL, broken.URL); err == nil {
		t.Fatal("expected error on candidate fetch failure")
	}
}

func TestAnalyzeDocumentCache(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(landingMarkup))
	}))
	t.Cleanup(srv.Close)
	semSrv := serveSimilarity(t, 1.0)

	docs := cache.New[*page.Document](5 * time.Minute)
	e := newTestEngine(t, semSrv.URL, engine.WithDocumentCache(docs))

	if _, err := e.Analyze(context.Background(), srv.URL, srv.URL); err != nil {
		t.Fatal(err)
	}
	first := hits
	if _, err := e.Analyze(context.Background(), srv.URL, srv.URL); err != nil {
		t.Fatal(err)
	}
	if hits != first {
		t.Fatalf("cache miss on second run: %d -> %d fetches", first, hits)
	}
}

func TestAnalyzeRecordsRun(t *testing.T) {
	pageSrv := servePage(t, landingMarkup)
	semSrv := serveSimilarity(t, 1.0)

	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	runLog := observability.NewRunLogger(db, 8)

	e := newTestEngine(t, semSrv.URL, engine.WithRunRecorder(runLog))
	if _, err := e.Analyze(context.Background(), pageSrv.URL, pageSrv.URL); err != nil {
		t.Fatal(err)
	}
	if err := runLog.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := runLog.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d run entries", len(entries))
	}
	if entries[0].Pattern != string(verdict.CopyPaste) || entries[0].VerdictJSON == "" {
		t.Fatalf("entry = %+v", entries[0])
	}
}
