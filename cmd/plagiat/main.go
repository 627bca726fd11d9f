// CLAUDE:SUMMARY Entry point for the plagiat detector — HTTP serve mode (chi) plus one-shot CLI analyze mode with self-check.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/plagiat/cache"
	"github.com/hazyhaar/plagiat/dbopen"
	"github.com/hazyhaar/plagiat/engine"
	"github.com/hazyhaar/plagiat/interaction"
	"github.com/hazyhaar/plagiat/observability"
	"github.com/hazyhaar/plagiat/page"
	"github.com/hazyhaar/plagiat/render"
	"github.com/hazyhaar/plagiat/section"
	"github.com/hazyhaar/plagiat/semantic"
	"github.com/hazyhaar/plagiat/structural"
	"github.com/hazyhaar/plagiat/verdict"
	"github.com/hazyhaar/plagiat/visual"
)

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := env("LOG_LEVEL", "info")
	logger := observability.NewLogger(os.Stdout, logLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Engine configuration: optional YAML file, endpoints from env.
	var cfg engine.Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		cfg, err = engine.LoadConfigFile(path)
		if err != nil {
			slog.Error("config", "error", err)
			return 1
		}
	}
	cfg.Logger = logger

	semanticEndpoint := env("SEMANTIC_ENDPOINT", "http://localhost:8091")
	visualEndpoint := env("VISUAL_ENDPOINT", "http://localhost:8092")
	chromeWS := env("CHROME_WS", "")
	runDBPath := env("RUN_DB", "db/runs.db")

	// Run log DB.
	runDB, err := dbopen.Open(runDBPath,
		dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		slog.Error("run db", "error", err)
		return 1
	}
	defer runDB.Close()
	runLog := observability.NewRunLogger(runDB, 256)
	defer runLog.Close()

	// Renderer. A failed Chrome launch degrades the visual dimension to
	// unavailable instead of refusing to start.
	browser := render.New(render.Config{RemoteURL: chromeWS, Logger: logger})
	if err := browser.Start(ctx); err != nil {
		slog.Warn("renderer unavailable, visual dimension degraded", "error", err)
	}
	defer browser.Close()

	docTTL := 5 * time.Minute
	if v := os.Getenv("DOC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			docTTL = d
		}
	}

	eng := engine.New(
		page.NewFetcher(page.FetchConfig{}),
		section.NewDetector(cfg.Detector),
		structural.New(structural.Config{Logger: logger}),
		semantic.New(semantic.Config{Endpoint: semanticEndpoint, Logger: logger}),
		visual.New(browser, visual.NewClient(visual.ClientConfig{Endpoint: visualEndpoint, Logger: logger}), visual.Config{Logger: logger}),
		interaction.New(interaction.Config{Logger: logger}),
		cfg,
		engine.WithDocumentCache(cache.New[*page.Document](docTTL)),
		engine.WithRunRecorder(runLog),
	)

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "analyze" {
		return runCLI(ctx, eng, args[1:])
	}

	return serve(ctx, eng, runLog)
}

// runCLI performs one analysis and prints the verdict JSON to stdout.
// Exit codes: 0 = analysis completed (whatever the verdict), 1 = invalid
// or unreachable input, 2 = no collaborator produced a usable score.
func runCLI(ctx context.Context, eng *engine.Engine, args []string) int {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: plagiat analyze <original-url> <candidate-url> [expected-pattern]")
		return 1
	}

	v, err := eng.Analyze(ctx, args[0], args[1])
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return 1
	}
	if v.DataUnavailable {
		printVerdict(v)
		return 2
	}

	printVerdict(v)

	// Optional self-check for test harnesses: compare the classified
	// pattern against the expected one. The exit code stays 0 either way.
	if len(args) == 3 {
		if string(v.Pattern) == args[2] {
			fmt.Fprintf(os.Stderr, "PASS: pattern %s\n", v.Pattern)
		} else {
			fmt.Fprintf(os.Stderr, "FAIL: expected %s, got %s\n", args[2], v.Pattern)
		}
	}
	return 0
}

func printVerdict(v verdict.Verdict) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// serve exposes the engine over HTTP until the context is cancelled.
func serve(ctx context.Context, eng *engine.Engine, runLog *observability.RunLogger) int {
	port := env("PORT", "8086")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(5 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OriginalURL  string `json:"original_url"`
			CandidateURL string `json:"candidate_url"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, 400, err)
			return
		}
		v, err := eng.Analyze(req.Context(), body.OriginalURL, body.CandidateURL)
		switch {
		case errors.Is(err, engine.ErrInvalidInput):
			writeError(w, 400, err)
		case err != nil:
			writeError(w, 502, err)
		default:
			writeJSON(w, 200, v)
		}
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		limit := queryInt(req, "limit", 50)
		entries, err := runLog.Recent(req.Context(), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if entries == nil {
			entries = []*observability.RunEntry{}
		}
		writeJSON(w, 200, entries)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "error", err)
		return 1
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return 0
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
