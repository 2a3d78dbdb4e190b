package main

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// Verifier performs post-copy verification.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// NewVerifier wraps open connections to both catalogs.
func NewVerifier(sourceDB, targetDB *gorm.DB) *Verifier {
	return &Verifier{
		sourceDB: sourceDB,
		targetDB: targetDB,
	}
}

// Verify runs the count comparison and then spot-checks rows.
func (v *Verifier) Verify() error {
	if err := v.verifyCounts(); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}

	if err := v.verifySamples(); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}

	return nil
}

// verifyCounts requires every table to hold the same number of rows
// on both sides.
func (v *Verifier) verifyCounts() error {
	fmt.Println("\nVerifying record counts...")

	tables := []struct {
		name  string
		model any
	}{
		{"recordings", &entities.RecordingEntity{}},
		{"syllables", &entities.SyllableEntity{}},
		{"embeddings", &entities.EmbeddingEntity{}},
		{"annotations", &entities.AnnotationEntity{}},
	}

	allMatch := true
	fmt.Printf("%-15s %12s %12s %8s\n", "Table", "Source", "Target", "Match")
	fmt.Println(strings.Repeat("-", 50))

	for _, t := range tables {
		var sourceCount, targetCount int64

		if err := v.sourceDB.Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}

		if err := v.targetDB.Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}

		match := "ok"
		if sourceCount != targetCount {
			match = "MISMATCH"
			allMatch = false
		}

		fmt.Printf("%-15s %12d %12d %8s\n", t.name, sourceCount, targetCount, match)
	}

	if !allMatch {
		return fmt.Errorf("record counts do not match")
	}

	fmt.Println("\nAll counts match!")
	return nil
}

// verifySamples spot-checks random rows from the two largest tables.
func (v *Verifier) verifySamples() error {
	fmt.Println("\nVerifying sample records...")

	if err := v.sampleRecordings(5); err != nil {
		return fmt.Errorf("recordings sampling failed: %w", err)
	}

	if err := v.sampleSyllables(5); err != nil {
		return fmt.Errorf("syllables sampling failed: %w", err)
	}

	fmt.Println("Sample verification passed!")
	return nil
}

// sampleRecordings verifies random recording rows field by field.
func (v *Verifier) sampleRecordings(count int) error {
	// RANDOM() is SQLite syntax; the source is always SQLite.
	var sourceRecs []entities.RecordingEntity
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourceRecs).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourceRecs) == 0 {
		fmt.Println("  recordings: no records to sample")
		return nil
	}

	for i := range sourceRecs {
		src := &sourceRecs[i]
		var target entities.RecordingEntity
		if err := v.targetDB.First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("recording ID %d not found in target: %w", src.ID, err)
		}

		if src.FilePath != target.FilePath {
			return fmt.Errorf("recording ID %d: FilePath mismatch (%s vs %s)",
				src.ID, src.FilePath, target.FilePath)
		}
		if src.Checksum != target.Checksum {
			return fmt.Errorf("recording ID %d: Checksum mismatch (%s vs %s)",
				src.ID, src.Checksum, target.Checksum)
		}
	}

	fmt.Printf("  recordings: %d samples verified\n", len(sourceRecs))
	return nil
}

// sampleSyllables verifies random syllable rows field by field.
func (v *Verifier) sampleSyllables(count int) error {
	var sourceSyls []entities.SyllableEntity
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourceSyls).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourceSyls) == 0 {
		fmt.Println("  syllables: no records to sample")
		return nil
	}

	for i := range sourceSyls {
		src := &sourceSyls[i]
		var target entities.SyllableEntity
		if err := v.targetDB.First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("syllable ID %d not found in target: %w", src.ID, err)
		}

		if src.RecordingID != target.RecordingID {
			return fmt.Errorf("syllable ID %d: RecordingID mismatch (%d vs %d)",
				src.ID, src.RecordingID, target.RecordingID)
		}
		if src.SpectrogramPath != target.SpectrogramPath {
			return fmt.Errorf("syllable ID %d: SpectrogramPath mismatch (%s vs %s)",
				src.ID, src.SpectrogramPath, target.SpectrogramPath)
		}
		if src.StartTime != target.StartTime || src.EndTime != target.EndTime {
			return fmt.Errorf("syllable ID %d: time window mismatch ([%g,%g] vs [%g,%g])",
				src.ID, src.StartTime, src.EndTime, target.StartTime, target.EndTime)
		}
		if src.Checksum != target.Checksum {
			return fmt.Errorf("syllable ID %d: Checksum mismatch (%s vs %s)",
				src.ID, src.Checksum, target.Checksum)
		}
	}

	fmt.Printf("  syllables: %d samples verified\n", len(sourceSyls))
	return nil
}
