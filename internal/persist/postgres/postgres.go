// Package postgres stores cache snapshots in PostgreSQL.
package postgres

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/vitro/internal/idgen"
	"github.com/alfredjeanlab/vitro/internal/persist"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultKeep is how many snapshots per workspace Write retains.
const DefaultKeep = 10

// ErrNotFound is returned when a workspace has no snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one stored cache export.
type Snapshot struct {
	ID         string
	Workspace  string
	EntryCount int
	Data       []byte
	CreatedAt  time.Time
}

// Store keeps the snapshots of one workspace.
type Store struct {
	db        *sql.DB
	workspace string
	keep      int
}

var (
	_ persist.Destination = (*Store)(nil)
	_ persist.Reader      = (*Store)(nil)
)

// New opens the database at databaseURL, configures the pool and runs
// pending migrations.
func New(databaseURL, workspace string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewWithDB(db, workspace), nil
}

// NewWithDB wraps an open database whose schema is already migrated.
func NewWithDB(db *sql.DB, workspace string) *Store {
	return &Store{db: db, workspace: workspace, keep: DefaultKeep}
}

// SetKeep changes how many snapshots Write retains. n <= 0 keeps all.
func (s *Store) SetKeep(n int) { s.keep = n }

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "vitro_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot inserts snap under the store's workspace.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	snap.Workspace = s.workspace
	return queryInsertSnapshot(ctx, s.db, snap)
}

// LatestSnapshot returns the newest snapshot of the workspace.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	return queryLatestSnapshot(ctx, s.db, s.workspace)
}

// ListSnapshots returns up to limit snapshots, newest first, without data.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	return queryListSnapshots(ctx, s.db, s.workspace, limit)
}

// Prune deletes all but the newest keep snapshots of the workspace.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	return queryPruneSnapshots(ctx, s.db, s.workspace, keep)
}

// Write stores a JSONL export as a new snapshot and prunes old ones, in one
// transaction.
func (s *Store) Write(ctx context.Context, data []byte) error {
	h, err := readHeader(data)
	if err != nil {
		return err
	}
	id, err := idgen.Snapshot()
	if err != nil {
		return fmt.Errorf("generate snapshot id: %w", err)
	}
	snap := &Snapshot{
		ID:         id,
		Workspace:  s.workspace,
		EntryCount: h.EntryCount,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := queryInsertSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if s.keep > 0 {
		if _, err := queryPruneSnapshots(ctx, tx, s.workspace, s.keep); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Read returns the data of the newest snapshot.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	snap, err := s.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

func readHeader(data []byte) (persist.Header, error) {
	var h persist.Header
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return h, fmt.Errorf("%w: bad header", persist.ErrFormat)
	}
	return h, nil
}
