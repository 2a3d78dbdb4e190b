package datastore

import (
	"slices"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/errors"
)

const (
	// DefaultSlowQueryThreshold defines the duration after which a query is
	// considered slow. 1 second accommodates bulk ingest batch statements
	// which can take several hundred milliseconds on slow media while still
	// flagging queries that genuinely need attention.
	DefaultSlowQueryThreshold = 1 * time.Second

	// MaxColumnsForDetailedDisplay defines the maximum number of columns to
	// display in detailed logs. When more columns are present, only the
	// count is shown to keep log output concise and readable.
	MaxColumnsForDetailedDisplay = 5
)

// catalogTables lists every table of the catalog schema in parent-first
// order, so migration creates referenced tables before referencing ones.
var catalogTables = []struct {
	model any
	name  string
}{
	{&entities.RecordingEntity{}, "recordings"},
	{&entities.SyllableEntity{}, "syllables"},
	{&entities.EmbeddingEntity{}, "embeddings"},
	{&entities.AnnotationEntity{}, "annotations"},
}

// createGormLogger builds the statement logger for this store. The echo
// flag raises the level so every statement is logged.
func (ds *DataStore) createGormLogger() gormlogger.Interface {
	level := gormlogger.Warn
	if ds.settings.Database.Echo {
		level = gormlogger.Info
	}
	return NewGormLogger(DefaultSlowQueryThreshold, level, ds.metrics)
}

// configureConnectionPool applies the configured pool limits to the
// underlying sql.DB and publishes them as gauges.
func (ds *DataStore) configureConnectionPool() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return dbError(err, "configure_pool", errors.PriorityHigh)
	}

	pool := ds.settings.Database.Pool
	maxLifetime, err := pool.MaxLifetimeDuration()
	if err != nil {
		// Validation catches this at load time; guard anyway
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("field", "database.pool.maxlifetime").
			Build()
	}

	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return connectionError(err, "ping", ds.Path())
	}

	if ds.metrics != nil {
		stats := sqlDB.Stats()
		ds.metrics.UpdateConnectionMetrics(stats.InUse, stats.Idle, pool.MaxOpen)
	}

	getLogger().Debug("Connection pool configured",
		"max_open", pool.MaxOpen,
		"max_idle", pool.MaxIdle,
		"max_lifetime", maxLifetime)

	return nil
}

// performAutoMigration walks the catalog schema through AutoMigrate,
// one table at a time in parent-first order.
func performAutoMigration(db *gorm.DB, debug bool, backend string) error {
	migrationStart := time.Now()
	migrationLogger := getLogger().With("backend", backend)

	migrationLogger.Debug("Starting database migration")

	successCount := 0
	for _, table := range catalogTables {
		if err := migrateTable(db, table.model, table.name, backend, debug); err != nil {
			return err
		}
		successCount++
	}

	migrationLogger.Debug("Database migration completed successfully",
		"total_duration", time.Since(migrationStart),
		"tables_migrated", successCount)

	return nil
}

// migrateTable runs AutoMigrate for one table and logs what the
// migration actually did: created, updated, or left it unchanged.
func migrateTable(db *gorm.DB, model any, tableName, backend string, debug bool) error {
	tableStart := time.Now()

	tableExists := db.Migrator().HasTable(model)

	if debug {
		getLogger().Debug("Migrating table",
			"table", tableName,
			"exists", tableExists)
	}

	// Column set before the migration, for the change report
	columnsBefore := tableColumns(db, model, tableExists)

	if err := db.AutoMigrate(model); err != nil {
		enhancedErr := criticalError(err, "auto_migrate_table", "schema_migration_failed",
			"backend", backend,
			"table", tableName,
			"action", "database_schema_setup")

		getLogger().Error("Table migration failed",
			"table", tableName,
			"error", enhancedErr)
		return enhancedErr
	}

	action, addedColumns := tableChanges(db, model, tableExists, columnsBefore)

	logTableMigration(tableName, action, addedColumns, time.Since(tableStart))

	return nil
}

// tableColumns lists the column names of model's table, empty when the
// table does not exist yet.
func tableColumns(db *gorm.DB, model any, tableExists bool) []string {
	var columns []string
	if tableExists {
		if cols, err := db.Migrator().ColumnTypes(model); err == nil {
			for _, col := range cols {
				columns = append(columns, col.Name())
			}
		}
	}
	return columns
}

// tableChanges compares the column set before and after AutoMigrate.
func tableChanges(db *gorm.DB, model any, tableExists bool, columnsBefore []string) (action string, addedColumns []string) {
	action = "updated"

	if !tableExists {
		action = "created"
		if cols, err := db.Migrator().ColumnTypes(model); err == nil {
			for _, col := range cols {
				addedColumns = append(addedColumns, col.Name())
			}
		}
		return action, addedColumns
	}

	addedColumns = newColumns(db, model, columnsBefore)
	if len(addedColumns) == 0 {
		action = "unchanged"
	}

	return action, addedColumns
}

// newColumns lists columns present now but absent from columnsBefore.
func newColumns(db *gorm.DB, model any, columnsBefore []string) []string {
	var addedColumns []string

	if cols, err := db.Migrator().ColumnTypes(model); err == nil {
		for _, col := range cols {
			colName := col.Name()
			if !slices.Contains(columnsBefore, colName) {
				addedColumns = append(addedColumns, colName)
			}
		}
	}

	return addedColumns
}

// logTableMigration reports one table's migration outcome. Full column
// lists only appear for small tables; past that only the count is logged.
func logTableMigration(tableName, action string, addedColumns []string, duration time.Duration) {
	args := []any{
		"table", tableName,
		"action", action,
		"duration", duration,
	}

	if len(addedColumns) > 0 {
		args = append(args, "columns_added", len(addedColumns))
		if len(addedColumns) <= MaxColumnsForDetailedDisplay {
			args = append(args, "new_columns", addedColumns)
		}
	}

	getLogger().Debug("Table migration completed", args...)
}
