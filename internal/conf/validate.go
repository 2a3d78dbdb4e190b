// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError aggregates every rule violation found in a Settings
// struct so the operator sees them all at once instead of one per run.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// minBatchSize is the smallest transaction batch the indexer accepts; smaller
// batches defeat the point of batched bulk insert.
const minBatchSize = 1000

// ValidateSettings checks every section of a loaded Settings struct and
// returns a ValidationError listing all violations, or nil.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateMainSettings(&settings.Main); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDataRootsSettings(&settings.DataRoots); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateIngestSettings(&settings.Ingest); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateQuerySettings(&settings.Query); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLoggingSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(settings *MainConfig) error {
	if strings.TrimSpace(settings.Name) == "" {
		return fmt.Errorf("main.name must not be empty")
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseConfig) error {
	var errs []string

	if settings.Enabled {
		if _, err := ParseDatabaseURL(settings.URL); err != nil {
			errs = append(errs, fmt.Sprintf("database.url: %v", err))
		}
	}

	if settings.Pool.MaxOpen < 1 {
		errs = append(errs, "database.pool.maxopen must be at least 1")
	}
	if settings.Pool.MaxIdle < 0 {
		errs = append(errs, "database.pool.maxidle must not be negative")
	}
	if settings.Pool.MaxIdle > settings.Pool.MaxOpen {
		errs = append(errs, "database.pool.maxidle must not exceed database.pool.maxopen")
	}
	if lifetime, err := settings.Pool.MaxLifetimeDuration(); err != nil {
		errs = append(errs, fmt.Sprintf("database.pool.maxlifetime is not a valid duration: %v", err))
	} else if lifetime < 0 {
		errs = append(errs, "database.pool.maxlifetime must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDataRootsSettings(settings *DataRootsConfig) error {
	var errs []string

	if strings.TrimSpace(settings.Audio) == "" {
		errs = append(errs, "dataroots.audio must not be empty")
	}
	if strings.TrimSpace(settings.Features) == "" {
		errs = append(errs, "dataroots.features must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateIngestSettings(settings *IngestConfig) error {
	var errs []string

	if strings.TrimSpace(settings.Globs.Audio) == "" {
		errs = append(errs, "ingest.globs.audio must not be empty")
	}
	if strings.TrimSpace(settings.Globs.Segments) == "" {
		errs = append(errs, "ingest.globs.segments must not be empty")
	}
	if strings.TrimSpace(settings.Globs.Embeddings) == "" {
		errs = append(errs, "ingest.globs.embeddings must not be empty")
	}

	switch settings.Checksum {
	case ChecksumSHA256, ChecksumSHA512, ChecksumBLAKE2B:
	default:
		errs = append(errs, fmt.Sprintf("ingest.checksum %q is not supported (sha256, sha512, blake2b-256)", settings.Checksum))
	}

	if settings.BatchSize < minBatchSize {
		errs = append(errs, fmt.Sprintf("ingest.batchsize must be at least %d, got %d", minBatchSize, settings.BatchSize))
	}

	if settings.Workers < 0 {
		errs = append(errs, "ingest.workers must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateQuerySettings(settings *QueryConfig) error {
	timeout, err := settings.TimeoutDuration()
	if err != nil {
		return fmt.Errorf("query.timeout is not a valid duration: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive, got %s", timeout)
	}
	if timeout > time.Hour {
		return fmt.Errorf("query.timeout must not exceed 1h, got %s", timeout)
	}
	return nil
}

func validateLoggingSettings(settings *LogConfig) error {
	switch strings.ToLower(settings.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not valid (trace, debug, info, warn, error)", settings.Level)
	}
}
