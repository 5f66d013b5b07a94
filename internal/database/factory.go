package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ustar-go/internal/config"
	"ustar-go/internal/database/migrations"
	"ustar-go/internal/ustar"
)

// CatalogFileName is the name of the SQLite catalog inside the data directory.
const CatalogFileName = "catalog.db"

// NewCatalogFromConfig creates a Catalog implementation based on the catalog config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (ustar.Catalog, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
		c, err := NewSQLiteCatalog(filepath.Join(cfg.DataDir, CatalogFileName))
		if errors.Is(err, migrations.ErrAhead) {
			return nil, fmt.Errorf("catalog was written by a newer ustar, upgrade to use it: %w", err)
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory":
		c, err := NewSQLiteCatalog(":memory:")
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return ustar.NewNopCatalog(), nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}

// DescribeCatalog reports the configured catalog and, for sqlite, the schema
// version of the database on disk. It never creates or migrates anything.
func DescribeCatalog(cfg config.CatalogConfig) (string, error) {
	switch cfg.Type {
	case "sqlite", "":
		path := filepath.Join(cfg.DataDir, CatalogFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return fmt.Sprintf("sqlite %s (not created)", path), nil
		}
		db, err := OpenConnection(path)
		if err != nil {
			return "", err
		}
		defer db.Close()

		v, err := migrations.Status(db)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sqlite %s (schema %s)", path, v), nil
	default:
		return cfg.Type, nil
	}
}
