package dbopen_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/plagiat/dbopen"
)

func TestOpenPragmas(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatal(err)
	}
	if busyTimeout != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busyTimeout)
	}
}

func TestWithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(
		"CREATE TABLE runs (run_id TEXT PRIMARY KEY, pattern TEXT)"))

	if _, err := dbopen.Exec(context.Background(), db,
		"INSERT INTO runs (run_id, pattern) VALUES (?, ?)", "run_1", "unrelated"); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestIsBusy(t *testing.T) {
	if dbopen.IsBusy(nil) {
		t.Fatal("nil error must not be busy")
	}
	if !dbopen.IsBusy(errBusy{}) {
		t.Fatal("expected busy detection on locked message")
	}
}

type errBusy struct{}

func (errBusy) Error() string { return "database is locked (5) (SQLITE_BUSY)" }
