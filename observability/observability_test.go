package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/plagiat/dbopen"
	_ "modernc.org/sqlite"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Error("info logged at warn level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Error("warn not logged")
	}
	if !log.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled")
	}
}

func TestRunLoggerSync(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	l := NewRunLogger(db, 8)
	defer l.Close()

	err := l.Log(context.Background(), &RunEntry{
		OriginalURL:  "https://a.example",
		CandidateURL: "https://b.example",
		Pattern:      "reconstructed",
		Severity:     "major",
		Confidence:   0.91,
		Duration:     1200 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := l.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.RunID == "" || e.Status != "completed" {
		t.Errorf("defaults not filled: %+v", e)
	}
	if e.Pattern != "reconstructed" || e.Duration != 1200*time.Millisecond {
		t.Errorf("entry = %+v", e)
	}
}

func TestRunLoggerAsyncDrainOnClose(t *testing.T) {
	// WHAT: Close flushes queued entries before returning.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	l := NewRunLogger(db, 8)

	for range 3 {
		l.LogAsync(&RunEntry{OriginalURL: "https://a.example", CandidateURL: "https://b.example"})
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM analysis_runs").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestRunLoggerErrorStatus(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	l := NewRunLogger(db, 8)
	defer l.Close()

	if err := l.Log(context.Background(), &RunEntry{
		OriginalURL:  "https://a.example",
		CandidateURL: "https://b.example",
		ErrorMessage: "fetch failed",
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != "error" {
		t.Fatalf("status = %q", entries[0].Status)
	}
}

func TestCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	l := NewRunLogger(db, 8)
	defer l.Close()

	old := &RunEntry{
		OriginalURL:  "https://a.example",
		CandidateURL: "https://b.example",
		StartedAt:    time.Now().AddDate(0, 0, -60),
	}
	if err := l.Log(context.Background(), old); err != nil {
		t.Fatal(err)
	}

	n, err := l.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted %d rows, want 1", n)
	}
}
