// interfaces.go: the storage contract and the DataStore that fulfils it.
package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/errors"
)

// Interface abstracts the underlying database implementation and defines
// the contract for catalog storage operations. Repositories and the query
// executor are the only intended callers.
type Interface interface {
	Open() error
	Close() error
	DB() *gorm.DB
	Backend() string
	Path() string
	Begin(ctx context.Context) (*Session, error)
	WithSession(ctx context.Context, fn func(*Session) error) error
	RetryOnTransient(ctx context.Context, operation string, fn func() error) error
	RowCounts(ctx context.Context) (map[string]int64, error)
}

// DataStore implements Interface using a GORM database. The concrete
// dialect is selected from the configured database URL at Open time.
type DataStore struct {
	db       *gorm.DB
	settings *conf.Settings
	metrics  *Metrics
	target   conf.DatabaseTarget
}

// New creates a DataStore from the provided settings. The returned store
// is not yet connected; call Open before use. Metrics may be nil.
func New(settings *conf.Settings, metrics *Metrics) (*DataStore, error) {
	if settings == nil {
		return nil, validationError("settings must not be nil", "settings", nil)
	}
	if !settings.Database.Enabled {
		return nil, errors.Newf("database is disabled in configuration").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	target, err := conf.ParseDatabaseURL(settings.Database.URL)
	if err != nil {
		return nil, err
	}

	return &DataStore{
		settings: settings,
		metrics:  metrics,
		target:   *target,
	}, nil
}

// Open establishes the database connection, configures the connection
// pool, and migrates the catalog schema.
func (ds *DataStore) Open() error {
	var err error
	switch ds.target.Backend {
	case conf.BackendSQLite:
		err = ds.openSQLite()
	case conf.BackendMySQL:
		err = ds.openMySQL()
	default:
		return errors.Newf("unsupported database backend: %s", ds.target.Backend).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("backend", ds.target.Backend).
			Build()
	}
	if err != nil {
		return err
	}

	if err := ds.configureConnectionPool(); err != nil {
		return err
	}

	return performAutoMigration(ds.db, ds.settings.Debug, ds.target.Backend)
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.db == nil {
		return nil
	}

	sqlDB, err := ds.db.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}

	if ds.settings.Debug {
		getLogger().Debug("Database connection closed",
			"backend", ds.target.Backend)
	}
	return nil
}

// DB returns the underlying GORM database. Reserved for the query
// executor and tests; application writes go through sessions.
func (ds *DataStore) DB() *gorm.DB {
	return ds.db
}

// Backend reports which database backend the store is configured for.
func (ds *DataStore) Backend() string {
	return ds.target.Backend
}

// Path returns where the catalog lives: the database file path for the
// embedded backend, the redacted connection URL for the networked one.
// Safe to put in logs and error messages.
func (ds *DataStore) Path() string {
	if ds.target.Backend == conf.BackendSQLite {
		return ds.target.Path
	}
	return ds.target.Redacted
}

// RowCounts returns the current number of rows in each catalog table.
func (ds *DataStore) RowCounts(ctx context.Context) (map[string]int64, error) {
	if ds.db == nil {
		return nil, dbError(errors.NewStd("database connection is not initialized"), "row_counts", errors.PriorityMedium)
	}

	counts := make(map[string]int64, len(catalogTables))
	for _, table := range catalogTables {
		var n int64
		if err := ds.db.WithContext(ctx).Table(table.name).Count(&n).Error; err != nil {
			return nil, dbError(err, "row_counts", errors.PriorityMedium, "table", table.name)
		}
		counts[table.name] = n
		if ds.metrics != nil {
			ds.metrics.UpdateTableRowCount(table.name, n)
		}
	}
	return counts, nil
}
