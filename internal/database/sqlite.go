package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ustar-go/internal/database/migrations"
	"ustar-go/internal/ustar"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements the ustar.Catalog interface using SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens the catalog at path and applies any pending
// migrations. path can be a file path or ":memory:" for an in-memory catalog.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if _, err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}

	return &SQLiteCatalog{db: db, path: path}, nil
}

// NewSQLiteCatalogFromDB wraps an existing database connection.
// The caller is responsible for ensuring the schema is up to date.
func NewSQLiteCatalogFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" gets its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Run operations

func (s *SQLiteCatalog) CreateRun(run *ustar.Run) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO runs (id, source_dir, destination, started_at, status, entry_count, bytes_written, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceDir, run.Destination, run.StartedAt.UTC(), string(run.Status),
		run.EntryCount, run.BytesWritten, run.Error)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) FinishRun(run *ustar.Run) error {
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE runs
		SET finished_at = ?, status = ?, entry_count = ?, bytes_written = ?, error = ?
		WHERE id = ?`,
		nullTime(run), string(run.Status), run.EntryCount, run.BytesWritten, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteCatalog) FindRun(id string) (*ustar.Run, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT id, source_dir, destination, started_at, finished_at, status, entry_count, bytes_written, error
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding run: %w", err)
	}
	return run, nil
}

func (s *SQLiteCatalog) ListRuns(limit int) ([]*ustar.Run, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, source_dir, destination, started_at, finished_at, status, entry_count, bytes_written, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*ustar.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Entry operations

// AddEntries inserts all entries of a run in a single transaction.
func (s *SQLiteCatalog) AddEntries(runID string, entries []*ustar.RunEntry) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_entries (run_id, seq, path, type, size, mode, uid, gid, mtime, header_offset, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, runID, e.Seq, e.Path, string(e.Type), e.Size, e.Mode,
			e.UID, e.GID, e.ModTime, e.Offset, e.Checksum)
		if err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) ListEntries(runID string) ([]*ustar.RunEntry, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT seq, path, type, size, mode, uid, gid, mtime, header_offset, checksum
		FROM run_entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []*ustar.RunEntry
	for rows.Next() {
		var e ustar.RunEntry
		var typ string
		if err := rows.Scan(&e.Seq, &e.Path, &typ, &e.Size, &e.Mode, &e.UID, &e.GID, &e.ModTime, &e.Offset, &e.Checksum); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		if len(typ) != 1 {
			return nil, fmt.Errorf("invalid type flag %q for entry %s", typ, e.Path)
		}
		e.Type = ustar.TypeFlag(typ[0])
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteCatalog) Path() string {
	return s.path
}

// Schema reads the current schema version of the catalog.
func (s *SQLiteCatalog) Schema() (migrations.SchemaVersion, error) {
	return migrations.Status(s.db)
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*ustar.Run, error) {
	var run ustar.Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.SourceDir, &run.Destination, &run.StartedAt, &finished,
		&status, &run.EntryCount, &run.BytesWritten, &run.Error)
	if err != nil {
		return nil, err
	}
	run.Status = ustar.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func nullTime(run *ustar.Run) sql.NullTime {
	if run.FinishedAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
}

// Compile-time check that SQLiteCatalog implements ustar.Catalog interface
var _ ustar.Catalog = (*SQLiteCatalog)(nil)
