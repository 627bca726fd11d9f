// CLAUDE:SUMMARY Async SQLite run log: buffered channel, batched flush loop, retention cleanup.
// Package observability records completed analysis runs in SQLite so
// operators can review verdicts and external-call costs after the fact.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/plagiat/idgen"
)

// Schema is the DDL for the run log.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    original_url TEXT NOT NULL,
    candidate_url TEXT NOT NULL,
    pattern TEXT,
    severity TEXT,
    confidence REAL,
    data_unavailable INTEGER NOT NULL DEFAULT 0,
    verdict_json TEXT,
    error_message TEXT,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON analysis_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_urls ON analysis_runs(original_url, candidate_url);
`

// Init applies the run-log schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// RunEntry is one recorded analysis run.
type RunEntry struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	OriginalURL  string
	CandidateURL string

	Pattern         string
	Severity        string
	Confidence      float64
	DataUnavailable bool
	VerdictJSON     string

	ErrorMessage string
	Status       string // "completed", "error", "cancelled"
}

// RunLogger persists run entries asynchronously.
type RunLogger struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *RunEntry
	stop  chan struct{}
	done  chan struct{}
}

// RunLoggerOption configures a RunLogger.
type RunLoggerOption func(*RunLogger)

// WithRunIDGenerator sets a custom ID generator for run IDs.
func WithRunIDGenerator(gen idgen.Generator) RunLoggerOption {
	return func(l *RunLogger) { l.newID = gen }
}

// NewRunLogger creates an async run logger. Recommended bufferSize: 256.
func NewRunLogger(db *sql.DB, bufferSize int, opts ...RunLoggerOption) *RunLogger {
	l := &RunLogger{
		db:    db,
		newID: idgen.Prefixed("run_", idgen.Default),
		ch:    make(chan *RunEntry, bufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Log inserts a run entry synchronously.
func (l *RunLogger) Log(ctx context.Context, entry *RunEntry) error {
	l.fillDefaults(entry)
	return l.insert(ctx, entry)
}

// LogAsync queues an entry for async persistence.
// Falls back to synchronous insert if the buffer is full.
func (l *RunLogger) LogAsync(entry *RunEntry) {
	l.fillDefaults(entry)
	select {
	case l.ch <- entry:
	default:
		slog.Warn("run log buffer full, sync fallback", "run_id", entry.RunID)
		if err := l.insert(context.Background(), entry); err != nil {
			slog.Error("run log: sync fallback failed", "error", err)
		}
	}
}

// Recent returns the latest runs, newest first.
func (l *RunLogger) Recent(ctx context.Context, limit int) ([]*RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `SELECT run_id, started_at, duration_ms,
		original_url, candidate_url, pattern, severity, confidence,
		data_unavailable, verdict_json, error_message, status
		FROM analysis_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var entries []*RunEntry
	for rows.Next() {
		var e RunEntry
		var started, durationMs int64
		var pattern, severity, verdictJSON, errorMessage sql.NullString
		var confidence sql.NullFloat64
		var unavailable int

		if err := rows.Scan(&e.RunID, &started, &durationMs,
			&e.OriginalURL, &e.CandidateURL, &pattern, &severity, &confidence,
			&unavailable, &verdictJSON, &errorMessage, &e.Status); err != nil {
			return nil, fmt.Errorf("scan run entry: %w", err)
		}

		e.StartedAt = time.Unix(started, 0)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.Pattern = pattern.String
		e.Severity = severity.String
		e.Confidence = confidence.Float64
		e.DataUnavailable = unavailable != 0
		e.VerdictJSON = verdictJSON.String
		e.ErrorMessage = errorMessage.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Cleanup deletes runs older than retentionDays.
func (l *RunLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	result, err := l.db.ExecContext(ctx, "DELETE FROM analysis_runs WHERE started_at < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup run log: %w", err)
	}
	return result.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (l *RunLogger) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *RunLogger) fillDefaults(e *RunEntry) {
	if e.RunID == "" {
		e.RunID = l.newID()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.Status == "" {
		if e.ErrorMessage != "" {
			e.Status = "error"
		} else {
			e.Status = "completed"
		}
	}
}

func (l *RunLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*RunEntry, 0, 50)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Error("run log: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, insertRunSQL)
		if err != nil {
			tx.Rollback()
			slog.Error("run log: prepare", "error", err)
			return
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx, runArgs(e)...); err != nil {
				slog.Error("run log: insert", "error", err, "run_id", e.RunID)
			}
		}
		if err := tx.Commit(); err != nil {
			slog.Error("run log: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= 50 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

const insertRunSQL = `INSERT INTO analysis_runs
	(run_id, started_at, duration_ms, original_url, candidate_url,
	 pattern, severity, confidence, data_unavailable, verdict_json,
	 error_message, status)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

func runArgs(e *RunEntry) []any {
	unavailable := 0
	if e.DataUnavailable {
		unavailable = 1
	}
	return []any{
		e.RunID, e.StartedAt.Unix(), e.Duration.Milliseconds(),
		e.OriginalURL, e.CandidateURL,
		e.Pattern, e.Severity, e.Confidence, unavailable, e.VerdictJSON,
		e.ErrorMessage, e.Status,
	}
}

func (l *RunLogger) insert(ctx context.Context, e *RunEntry) error {
	_, err := l.db.ExecContext(ctx, insertRunSQL, runArgs(e)...)
	return err
}
