package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func queryInsertSnapshot(ctx context.Context, db executor, snap *Snapshot) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cache_snapshots (id, workspace, entry_count, data, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.Workspace, snap.EntryCount, snap.Data, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func queryLatestSnapshot(ctx context.Context, db executor, workspace string) (*Snapshot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, workspace, entry_count, data, created_at
		FROM cache_snapshots
		WHERE workspace = $1
		ORDER BY created_at DESC
		LIMIT 1`, workspace)
	snap, err := scanSnapshot(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: workspace %q", ErrNotFound, workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

func queryListSnapshots(ctx context.Context, db executor, workspace string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = DefaultKeep
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, workspace, entry_count, created_at
		FROM cache_snapshots
		WHERE workspace = $1
		ORDER BY created_at DESC
		LIMIT $2`, workspace, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func queryPruneSnapshots(ctx context.Context, db executor, workspace string, keep int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM cache_snapshots
		WHERE workspace = $1 AND id NOT IN (
			SELECT id FROM cache_snapshots
			WHERE workspace = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`, workspace, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}

func scanSnapshot(row scannable, withData bool) (*Snapshot, error) {
	var snap Snapshot
	dest := []any{&snap.ID, &snap.Workspace, &snap.EntryCount}
	if withData {
		dest = append(dest, &snap.Data)
	}
	dest = append(dest, &snap.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &snap, nil
}
