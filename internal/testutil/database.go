package testutil

import (
	"testing"

	"ustar-go/internal/database"
	"ustar-go/internal/database/migrations"
)

// NewTestCatalog creates a new in-memory SQLite catalog with migrations applied.
// The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) *database.SQLiteCatalog {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := migrations.Apply(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	catalog := database.NewSQLiteCatalogFromDB(sqlDB)

	t.Cleanup(func() {
		catalog.Close()
	})

	return catalog
}
