package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/vitro/internal/persist"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var snapshotColumns = []string{"id", "workspace", "entry_count", "data", "created_at"}

const sampleExport = `{"version":"1","type":"header","timestamp":"2026-01-02T03:04:05Z","entry_count":2}
{"type":"entry","data":{}}
{"type":"entry","data":{}}
`

func TestQueryInsertSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	snap := &Snapshot{ID: "snap-abc", Workspace: "acme", EntryCount: 3, Data: []byte("x"), CreatedAt: now}
	mock.ExpectExec("INSERT INTO cache_snapshots").
		WithArgs("snap-abc", "acme", 3, []byte("x"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryInsertSnapshot(context.Background(), db, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryInsertSnapshot_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO cache_snapshots").WillReturnError(errors.New("duplicate key"))

	err := queryInsertSnapshot(context.Background(), db, &Snapshot{ID: "snap-dup"})
	if err == nil || !strings.Contains(err.Error(), "snap-dup") {
		t.Fatalf("expected wrapped error naming the snapshot, got %v", err)
	}
}

func TestLatestSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM cache_snapshots WHERE workspace = \\$1 ORDER BY created_at DESC LIMIT 1").
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(snapshotColumns).AddRow("snap-1", "acme", 2, []byte(sampleExport), now))

	s := NewWithDB(db, "acme")
	snap, err := s.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID != "snap-1" || snap.EntryCount != 2 || string(snap.Data) != sampleExport {
		t.Fatalf("got %+v", snap)
	}
}

func TestLatestSnapshot_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM cache_snapshots").WithArgs("acme").WillReturnError(sql.ErrNoRows)

	_, err := NewWithDB(db, "acme").LatestSnapshot(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRead(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM cache_snapshots").WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(snapshotColumns).AddRow("snap-1", "acme", 2, []byte(sampleExport), time.Now()))

	data, err := NewWithDB(db, "acme").Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != sampleExport {
		t.Fatalf("Read = %q", data)
	}
}

func TestListSnapshots(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "workspace", "entry_count", "created_at"}).
		AddRow("snap-2", "acme", 5, now).
		AddRow("snap-1", "acme", 2, now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, workspace, entry_count, created_at FROM cache_snapshots").
		WithArgs("acme", 20).WillReturnRows(rows)

	got, err := NewWithDB(db, "acme").ListSnapshots(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "snap-2" || got[1].EntryCount != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Data != nil {
		t.Errorf("listed snapshots should not carry data")
	}
}

func TestListSnapshots_DefaultLimit(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM cache_snapshots").WithArgs("acme", DefaultKeep).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace", "entry_count", "created_at"}))

	got, err := NewWithDB(db, "acme").ListSnapshots(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no snapshots, got %d", len(got))
	}
}

func TestPrune(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM cache_snapshots").WithArgs("acme", 3).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := NewWithDB(db, "acme").Prune(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("pruned %d, want 4", n)
	}
}

func TestWrite_InsertsAndPrunes(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_snapshots").
		WithArgs(sqlmock.AnyArg(), "acme", 2, []byte(sampleExport), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM cache_snapshots").WithArgs("acme", DefaultKeep).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := NewWithDB(db, "acme").Write(context.Background(), []byte(sampleExport)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWrite_KeepAll(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewWithDB(db, "acme")
	s.SetKeep(0)
	if err := s.Write(context.Background(), []byte(sampleExport)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWrite_RollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_snapshots").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := NewWithDB(db, "acme").Write(context.Background(), []byte(sampleExport)); err == nil {
		t.Fatal("expected error")
	}
}

func TestWrite_RejectsNonSnapshot(t *testing.T) {
	db, _ := newMockDB(t)

	err := NewWithDB(db, "acme").Write(context.Background(), []byte("hello\n"))
	if !errors.Is(err, persist.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("got %d up and %d down migrations", up, down)
	}
}
