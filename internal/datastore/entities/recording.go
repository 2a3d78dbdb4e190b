// Package entities holds the GORM models for the four catalog tables.
// Schema details live in the struct tags; the repositories own all
// query behavior.
package entities

import "time"

// RecordingEntity is the GORM model for the 'recordings' table.
// One row per source audio file under the audio data root.
type RecordingEntity struct {
	ID        uint      `gorm:"primaryKey"`
	FilePath  string    `gorm:"uniqueIndex:idx_recordings_file_path;size:512;not null"`
	Checksum  string    `gorm:"size:128;not null"`
	CreatedAt time.Time `gorm:"index:idx_recordings_created_at"`
	// Extra holds free-form JSON: audio header fields, filename-derived
	// session metadata, sidecar metadata.
	Extra string `gorm:"type:text"`

	// Relationships
	Syllables []SyllableEntity `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table name instead of letting GORM derive it.
func (RecordingEntity) TableName() string {
	return "recordings"
}
