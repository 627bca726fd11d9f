// CLAUDE:SUMMARY Analysis orchestrator: fetch, detect, match, fan out per-pair scoring under a bounded worker pool, aggregate into a verdict.
// Package engine orchestrates one full plagiarism analysis: fetch both
// documents, detect and match sections, score every dimension, fold the
// per-pair scores into convergence records and generate the verdict.
//
// The engine owns no scoring logic. Every analyzer is injected behind a
// small interface so tests can substitute collaborators, and so the
// external services (semantic similarity, renderer, image comparator)
// stay replaceable.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/plagiat/cache"
	"github.com/hazyhaar/plagiat/convergence"
	"github.com/hazyhaar/plagiat/horosafe"
	"github.com/hazyhaar/plagiat/observability"
	"github.com/hazyhaar/plagiat/page"
	"github.com/hazyhaar/plagiat/score"
	"github.com/hazyhaar/plagiat/section"
	"github.com/hazyhaar/plagiat/verdict"
)

// ErrInvalidInput marks a malformed document URL. The CLI maps it to
// exit code 1.
var ErrInvalidInput = errors.New("engine: invalid input URL")

// Fetcher retrieves and parses one document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*page.Document, error)
}

// Detector splits a document into typed sections.
type Detector interface {
	Detect(doc *page.Document) []section.Section
}

// StructuralAnalyzer scores document-level code similarity.
type StructuralAnalyzer interface {
	Compare(original, candidate *page.Document) score.DimensionScore
}

// SemanticScorer scores document-level semantic similarity, falling back
// to the structural score when the external service is unreachable.
type SemanticScorer interface {
	Score(ctx context.Context, original, candidate *page.Document, structural score.DimensionScore) score.DimensionScore
}

// VisualAnalyzer scores rendered-layout similarity for one pair.
type VisualAnalyzer interface {
	Compare(ctx context.Context, pair section.Pair, originalURL, candidateURL string) score.DimensionScore
}

// InteractionAnalyzer scores behavioral-fingerprint similarity for one pair.
type InteractionAnalyzer interface {
	Compare(pair section.Pair) score.DimensionScore
}

// RunRecorder receives a record of each completed analysis run.
type RunRecorder interface {
	LogAsync(entry *observability.RunEntry)
}

// Config tunes the orchestration, not the scoring.
type Config struct {
	// MaxConcurrent bounds in-flight per-pair analyses. Default: 4.
	MaxConcurrent int `yaml:"max_concurrent"`

	// PairTimeout bounds one pair's visual analysis. Default: 60s.
	PairTimeout time.Duration `yaml:"pair_timeout"`

	// RateLimit caps external calls per second across the run. Zero
	// disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Detector    section.DetectorConfig `yaml:"detector"`
	Convergence convergence.Config     `yaml:"convergence"`
	Verdict     verdict.Config         `yaml:"verdict"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.PairTimeout <= 0 {
		c.PairTimeout = 60 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine runs analyses.
type Engine struct {
	fetcher     Fetcher
	detector    Detector
	structural  StructuralAnalyzer
	semantic    SemanticScorer
	visual      VisualAnalyzer
	interaction InteractionAnalyzer

	converge *convergence.Scorer
	generate *verdict.Generator

	limiter *rate.Limiter
	docs    *cache.Cache[*page.Document]
	runLog  RunRecorder

	cfg Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithDocumentCache reuses fetched documents across analyses for the
// cache's TTL.
func WithDocumentCache(c *cache.Cache[*page.Document]) Option {
	return func(e *Engine) { e.docs = c }
}

// WithRunRecorder persists each completed run.
func WithRunRecorder(r RunRecorder) Option {
	return func(e *Engine) { e.runLog = r }
}

// New creates an Engine.
func New(fetcher Fetcher, detector Detector, structural StructuralAnalyzer,
	semantic SemanticScorer, visual VisualAnalyzer, interaction InteractionAnalyzer,
	cfg Config, opts ...Option) *Engine {
	cfg.defaults()
	e := &Engine{
		fetcher:     fetcher,
		detector:    detector,
		structural:  structural,
		semantic:    semantic,
		visual:      visual,
		interaction: interaction,
		converge:    convergence.New(cfg.Convergence),
		generate:    verdict.New(cfg.Verdict),
		cfg:         cfg,
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type pairResult struct {
	pair        section.Pair
	visual      score.DimensionScore
	interaction score.DimensionScore
}

// Analyze compares the candidate document against the original and
// returns the verdict. A fetch failure on either document aborts the run;
// failures of individual scoring collaborators degrade the corresponding
// dimension instead.
func (e *Engine) Analyze(ctx context.Context, originalURL, candidateURL string) (verdict.Verdict, error) {
	started := time.Now()

	if err := horosafe.CheckFormat(originalURL); err != nil {
		return verdict.Verdict{}, fmt.Errorf("%w: original: %v", ErrInvalidInput, err)
	}
	if err := horosafe.CheckFormat(candidateURL); err != nil {
		return verdict.Verdict{}, fmt.Errorf("%w: candidate: %v", ErrInvalidInput, err)
	}

	original, candidate, err := e.fetchBoth(ctx, originalURL, candidateURL)
	if err != nil {
		e.record(started, originalURL, candidateURL, verdict.Verdict{}, err)
		return verdict.Verdict{}, err
	}

	pairs := section.Match(e.detector.Detect(original), e.detector.Detect(candidate))
	e.cfg.Logger.Info("sections matched",
		"original", originalURL, "candidate", candidateURL, "pairs", len(pairs))

	structural := e.structural.Compare(original, candidate)

	// Fan out: one semantic call for the document pair, visual and
	// interaction per matched pair. Results are keyed by pair identity,
	// never by completion order.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		semantic score.DimensionScore
		results  = make(map[string]pairResult, len(pairs))
		sem      = make(chan struct{}, e.cfg.MaxConcurrent)
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.waitLimiter(ctx)
		s := e.semantic.Score(ctx, original, candidate, structural)
		mu.Lock()
		semantic = s
		mu.Unlock()
	}()

	for _, pair := range pairs {
		wg.Add(1)
		go func(pair section.Pair) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pairCtx, cancel := context.WithTimeout(ctx, e.cfg.PairTimeout)
			defer cancel()

			e.waitLimiter(pairCtx)
			vs := e.visual.Compare(pairCtx, pair, originalURL, candidateURL)
			is := e.interaction.Compare(pair)

			mu.Lock()
			results[pair.Key()] = pairResult{pair: pair, visual: vs, interaction: is}
			mu.Unlock()
		}(pair)
	}
	wg.Wait()

	// A cancelled run must not produce a verdict from partial results.
	if err := ctx.Err(); err != nil {
		e.record(started, originalURL, candidateURL, verdict.Verdict{}, err)
		return verdict.Verdict{}, err
	}

	records := make([]convergence.Record, 0, len(pairs))
	for _, pair := range pairs {
		res := results[pair.Key()]
		records = append(records, e.converge.Score(pair.Original.Type, res.visual, res.interaction))
	}

	cost := &verdict.CostEstimate{
		SemanticCalls:   1,
		RendererCalls:   2 * len(pairs),
		ComparatorCalls: len(pairs),
	}

	v := e.generate.Generate(structural, semantic, records, cost)
	e.cfg.Logger.Info("analysis completed",
		"original", originalURL, "candidate", candidateURL,
		"pattern", v.Pattern, "severity", v.Severity, "confidence", v.Confidence,
		"duration", time.Since(started))

	e.record(started, originalURL, candidateURL, v, nil)
	return v, nil
}

// fetchBoth retrieves both documents concurrently, consulting the
// document cache first.
func (e *Engine) fetchBoth(ctx context.Context, originalURL, candidateURL string) (*page.Document, *page.Document, error) {
	type result struct {
		doc *page.Document
		err error
	}
	fetch := func(url string, out chan<- result) {
		if doc, ok := e.docs.Get(url); ok {
			out <- result{doc: doc}
			return
		}
		e.waitLimiter(ctx)
		doc, err := e.fetcher.Fetch(ctx, url)
		if err == nil {
			e.docs.Put(url, doc)
		}
		out <- result{doc: doc, err: err}
	}

	chA := make(chan result, 1)
	chB := make(chan result, 1)
	go fetch(originalURL, chA)
	go fetch(candidateURL, chB)

	ra, rb := <-chA, <-chB
	if ra.err != nil {
		return nil, nil, fmt.Errorf("engine: fetch original %s: %w", originalURL, ra.err)
	}
	if rb.err != nil {
		return nil, nil, fmt.Errorf("engine: fetch candidate %s: %w", candidateURL, rb.err)
	}
	return ra.doc, rb.doc, nil
}

func (e *Engine) waitLimiter(ctx context.Context) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Wait(ctx); err != nil {
		e.cfg.Logger.Debug("rate limiter wait aborted", "error", err)
	}
}

func (e *Engine) record(started time.Time, originalURL, candidateURL string, v verdict.Verdict, runErr error) {
	if e.runLog == nil {
		return
	}
	entry := &observability.RunEntry{
		StartedAt:    started,
		Duration:     time.Since(started),
		OriginalURL:  originalURL,
		CandidateURL: candidateURL,
	}
	if runErr != nil {
		entry.ErrorMessage = runErr.Error()
	} else {
		entry.Pattern = string(v.Pattern)
		entry.Severity = string(v.Severity)
		entry.Confidence = v.Confidence
		entry.DataUnavailable = v.DataUnavailable
		if b, err := json.Marshal(v); err == nil {
			entry.VerdictJSON = string(b)
		}
	}
	e.runLog.LogAsync(entry)
}
