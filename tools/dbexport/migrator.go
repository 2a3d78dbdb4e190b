package main

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// Migrator handles the copy of catalog rows from SQLite to MySQL.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// MigrationStats tracks copy statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table copy statistics.
type TableStats struct {
	Name      string
	Migrated  int64
	Skipped   int64
	Errors    int64
	Duration  time.Duration
	BatchSize int
}

// Print outputs the copy statistics.
func (s *MigrationStats) Print() {
	fmt.Printf("\nExport finished in %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Printf("%-15s %10s %10s %10s %12s\n", "Table", "Copied", "Skipped", "Errors", "Duration")
	fmt.Println(strings.Repeat("-", 62))

	var copied, skipped, failed int64
	for _, t := range s.Tables {
		fmt.Printf("%-15s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
		copied += t.Migrated
		skipped += t.Skipped
		failed += t.Errors
	}

	fmt.Println(strings.Repeat("-", 62))
	fmt.Printf("%-15s %10d %10d %10d\n", "TOTAL", copied, skipped, failed)
}

// NewMigrator creates a new Migrator with both database connections open.
func NewMigrator(cfg *Config) (*Migrator, error) {
	m := &Migrator{cfg: *cfg}

	logLevel := logger.Silent
	if cfg.Verbose {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	sourceDB, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	m.sourceDB = sourceDB

	targetDB, err := gorm.Open(mysql.Open(cfg.TargetDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open mysql catalog: %w", err)
	}
	m.targetDB = targetDB

	sqlDB, err := sourceDB.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite connection handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite catalog: %w", err)
	}

	sqlDB, err = targetDB.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql connection handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping mysql catalog: %w", err)
	}

	fmt.Println("Connected to both catalogs")

	return m, nil
}

// Close releases both catalog connections.
func (m *Migrator) Close() {
	if m.sourceDB != nil {
		if db, err := m.sourceDB.DB(); err == nil {
			_ = db.Close()
		}
	}
	if m.targetDB != nil {
		if db, err := m.targetDB.DB(); err == nil {
			_ = db.Close()
		}
	}
}

// Run executes the full export.
func (m *Migrator) Run() (*MigrationStats, error) {
	stats := &MigrationStats{
		StartTime: time.Now(),
	}

	if m.cfg.DropTables {
		if err := m.dropTables(); err != nil {
			return nil, fmt.Errorf("drop target tables: %w", err)
		}
	}

	if m.cfg.AutoMigrate {
		if err := m.autoMigrateTables(); err != nil {
			return nil, fmt.Errorf("create target tables: %w", err)
		}
	}

	// Rows are copied parent-first with their original IDs, but a
	// partially copied previous run may have left children whose
	// parents arrive later in this run. FK checks stay off until the
	// copy is complete.
	if err := m.targetDB.Exec("SET FOREIGN_KEY_CHECKS=0").Error; err != nil {
		return nil, fmt.Errorf("disable foreign key checks: %w", err)
	}
	defer m.targetDB.Exec("SET FOREIGN_KEY_CHECKS=1")

	if m.cfg.Clean {
		if err := m.cleanTables(); err != nil {
			return nil, fmt.Errorf("truncate target tables: %w", err)
		}
	}

	tables := []struct {
		name      string
		batchSize int
		migrate   func(int) (*TableStats, error)
	}{
		{"recordings", 1000, m.migrateRecordings},
		{"syllables", 2000, m.migrateSyllables},
		{"embeddings", 2000, m.migrateEmbeddings},
		{"annotations", 5000, m.migrateAnnotations},
	}

	for _, t := range tables {
		batchSize := t.batchSize
		if m.cfg.BatchSize > 0 && m.cfg.BatchSize < t.batchSize {
			batchSize = m.cfg.BatchSize
		}

		tableStats, err := t.migrate(batchSize)
		if err != nil {
			return stats, fmt.Errorf("copy %s: %w", t.name, err)
		}
		stats.Tables = append(stats.Tables, *tableStats)
	}

	stats.EndTime = time.Now()

	return stats, nil
}

// catalogTables lists the four tables parent-first. Drops and
// truncations walk it in reverse.
var catalogTables = []string{"recordings", "syllables", "embeddings", "annotations"}

// dropTables drops the catalog tables from the target for a fresh start.
func (m *Migrator) dropTables() error {
	fmt.Println("Dropping catalog tables in target...")

	if err := m.targetDB.Exec("SET FOREIGN_KEY_CHECKS=0").Error; err != nil {
		return fmt.Errorf("disable foreign key checks: %w", err)
	}

	for i := len(catalogTables) - 1; i >= 0; i-- {
		table := catalogTables[i]
		if err := m.targetDB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			fmt.Printf("  warning: drop %s: %v\n", table, err)
		} else if m.cfg.Verbose {
			fmt.Printf("  dropped %s\n", table)
		}
	}

	if err := m.targetDB.Exec("SET FOREIGN_KEY_CHECKS=1").Error; err != nil {
		return fmt.Errorf("re-enable foreign key checks: %w", err)
	}

	return nil
}

// autoMigrateTables creates the catalog tables in the target using GORM
// AutoMigrate, parent-first so FK constraints can be declared.
func (m *Migrator) autoMigrateTables() error {
	fmt.Println("Creating catalog tables in target...")

	models := []any{
		&entities.RecordingEntity{},
		&entities.SyllableEntity{},
		&entities.EmbeddingEntity{},
		&entities.AnnotationEntity{},
	}

	for _, model := range models {
		if err := m.targetDB.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	return nil
}

// cleanTables truncates the target catalog tables.
func (m *Migrator) cleanTables() error {
	fmt.Println("Truncating target tables...")
	for i := len(catalogTables) - 1; i >= 0; i-- {
		table := catalogTables[i]
		if err := m.targetDB.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)).Error; err != nil {
			// TRUNCATE fails on a table that does not exist yet
			if err := m.targetDB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
				fmt.Printf("  warning: truncate %s: %v\n", table, err)
			}
		}
		if m.cfg.Verbose {
			fmt.Printf("  truncated %s\n", table)
		}
	}

	return nil
}

// migrateTable copies one table in batches, skipping rows whose unique
// keys already exist in the target.
func migrateTable[T any](m *Migrator, tableName string, batchSize int) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{
		Name:      tableName,
		BatchSize: batchSize,
	}

	fmt.Printf("Copying %s...\n", tableName)

	var sourceCount int64
	if err := m.sourceDB.Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("count source rows: %w", err)
	}

	if sourceCount == 0 {
		fmt.Printf("  %s: source is empty\n", tableName)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0

	err := m.sourceDB.Model(new(T)).FindInBatches(new([]T), batchSize, func(tx *gorm.DB, batch int) error {
		batchNum++
		records := tx.Statement.Dest.(*[]T)

		result := m.targetDB.Clauses(clause.OnConflict{DoNothing: true}).Create(records)
		if result.Error != nil {
			stats.Errors += int64(len(*records))
			fmt.Printf("  batch %d failed: %v\n", batchNum, result.Error)
			// Keep copying; the verification step reports the shortfall.
			return nil //nolint:nilerr // intentional: continue despite batch error
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += int64(len(*records)) - result.RowsAffected
		processed += int64(len(*records))

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Printf("  %s: %d/%d rows (%.0f%%)\n", tableName, processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}

		return nil
	}).Error

	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Printf("  %s: %d copied, %d skipped, %d errors in %s\n",
		tableName, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))

	return stats, nil
}

func (m *Migrator) migrateRecordings(batchSize int) (*TableStats, error) {
	return migrateTable[entities.RecordingEntity](m, "recordings", batchSize)
}

func (m *Migrator) migrateSyllables(batchSize int) (*TableStats, error) {
	return migrateTable[entities.SyllableEntity](m, "syllables", batchSize)
}

func (m *Migrator) migrateEmbeddings(batchSize int) (*TableStats, error) {
	return migrateTable[entities.EmbeddingEntity](m, "embeddings", batchSize)
}

func (m *Migrator) migrateAnnotations(batchSize int) (*TableStats, error) {
	return migrateTable[entities.AnnotationEntity](m, "annotations", batchSize)
}
