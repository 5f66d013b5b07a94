package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Schema states that stop a catalog from being used as is.
var (
	ErrNotMigrated = errors.New("catalog schema not initialized")
	ErrBehind      = errors.New("catalog schema is behind")
	ErrAhead       = errors.New("catalog schema is newer than this binary")
	ErrDirty       = errors.New("catalog schema is dirty")
)

// SchemaVersion is the state of a catalog database against the migrations
// embedded in the binary. Current is 0 when nothing has been applied.
type SchemaVersion struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending returns how many migrations Apply would run.
func (v SchemaVersion) Pending() uint {
	if v.Current >= v.Latest {
		return 0
	}
	return v.Latest - v.Current
}

func (v SchemaVersion) String() string {
	switch {
	case v.Dirty:
		return fmt.Sprintf("v%d (dirty)", v.Current)
	case v.Current == 0:
		return "uninitialized"
	case v.Current > v.Latest:
		return fmt.Sprintf("v%d (newer than v%d)", v.Current, v.Latest)
	case v.Current < v.Latest:
		return fmt.Sprintf("v%d (%d pending)", v.Current, v.Pending())
	}
	return fmt.Sprintf("v%d", v.Current)
}

// Check classifies v. It returns nil only for a clean catalog at Latest;
// otherwise a *SchemaError wrapping one of the Err values above.
func (v SchemaVersion) Check() error {
	var reason error
	switch {
	case v.Dirty:
		reason = ErrDirty
	case v.Current == 0:
		reason = ErrNotMigrated
	case v.Current < v.Latest:
		reason = ErrBehind
	case v.Current > v.Latest:
		reason = ErrAhead
	default:
		return nil
	}
	return &SchemaError{Version: v, Err: reason}
}

// SchemaError reports a catalog whose schema cannot be used.
type SchemaError struct {
	Version SchemaVersion
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: at %s, binary expects v%d", e.Err, e.Version, e.Version.Latest)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Latest returns the highest migration version embedded in the binary.
func Latest() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("reading first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading migration after v%d: %w", v, err)
		}
		v = next
	}
}

// Status reads the schema version of db without applying any migration.
func Status(db *sql.DB) (SchemaVersion, error) {
	latest, err := Latest()
	if err != nil {
		return SchemaVersion{}, err
	}
	m, err := newMigrate(db)
	if err != nil {
		return SchemaVersion{}, err
	}
	// m is not closed: that would close db, which belongs to the caller.

	current, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{Latest: latest}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("reading catalog schema version: %w", err)
	}
	return SchemaVersion{Current: current, Latest: latest, Dirty: dirty}, nil
}

// Check returns nil when db is at the latest schema.
func Check(db *sql.DB) error {
	v, err := Status(db)
	if err != nil {
		return err
	}
	return v.Check()
}

// Apply brings db up to the latest schema and returns the resulting version.
// A dirty catalog, or one written by a newer binary, is left untouched.
func Apply(db *sql.DB) (SchemaVersion, error) {
	v, err := Status(db)
	if err != nil {
		return v, err
	}
	if v.Dirty || v.Current > v.Latest {
		return v, v.Check()
	}
	if v.Pending() == 0 {
		return v, nil
	}

	m, err := newMigrate(db)
	if err != nil {
		return v, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return v, fmt.Errorf("migrating catalog from %s: %w", v, err)
	}
	return Status(db)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading migration files: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("opening catalog for migration: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing catalog migration: %w", err)
	}
	return m, nil
}
