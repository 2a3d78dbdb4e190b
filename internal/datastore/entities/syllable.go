package entities

import "time"

// SyllableEntity represents one segmented vocalization unit of a recording.
// Maps to the 'syllables' table.
type SyllableEntity struct {
	ID              uint    `gorm:"primaryKey"`
	RecordingID     uint    `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:RecordingID;references:ID"`
	SpectrogramPath string  `gorm:"uniqueIndex:idx_syllables_spectrogram_path;size:512;not null"`
	StartTime       float64 `gorm:"not null"`
	EndTime         float64 `gorm:"not null;check:chk_syllable_times,end_time > start_time"`
	Checksum        string  `gorm:"size:128;not null"`
	// Bounds holds the time/frequency box of the syllable as JSON text.
	Bounds    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_syllables_created_at"`

	// Relationships
	Embeddings  []EmbeddingEntity  `gorm:"foreignKey:SyllableID;constraint:OnDelete:CASCADE"`
	Annotations []AnnotationEntity `gorm:"foreignKey:SyllableID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table name instead of letting GORM derive it.
func (SyllableEntity) TableName() string {
	return "syllables"
}
