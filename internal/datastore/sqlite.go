package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// openSQLite sets up the SQLite database connection. The DSN enables WAL
// journaling for concurrent readers during ingest, a busy timeout so
// short lock contention surfaces as a retryable error rather than an
// immediate failure, and foreign-key enforcement for the cascade rules.
func (ds *DataStore) openSQLite() error {
	dbPath := ds.target.Path

	// Ensure the parent directory exists before the driver creates the file
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_directory").
				Context("path", dir).
				Build()
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: ds.createGormLogger()})
	if err != nil {
		getLogger().Error("Failed to open SQLite database",
			"path", dbPath,
			"error", err)
		return connectionError(err, "open_sqlite", dbPath)
	}

	ds.db = db

	if ds.settings.Debug {
		getLogger().Debug("SQLite database opened",
			"path", dbPath)
	}
	return nil
}
