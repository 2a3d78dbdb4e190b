package entities

import "time"

// EmbeddingEntity represents one model-derived feature vector for a syllable.
// Maps to the 'embeddings' table. The vector itself lives in the bulk store;
// the row carries only its path, shape, and provenance.
type EmbeddingEntity struct {
	ID            uint   `gorm:"primaryKey"`
	SyllableID    uint   `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:SyllableID;references:ID"`
	ModelVersion  string `gorm:"index:idx_embeddings_model_version;size:128;not null"`
	EmbeddingPath string `gorm:"uniqueIndex:idx_embeddings_embedding_path;size:512;not null"`
	Dimensions    int    `gorm:"not null;check:chk_embedding_dimensions,dimensions > 0"`
	Checksum      string `gorm:"size:128;not null"`
	// ModelMetadata holds inference provenance as JSON text
	// (checkpoint, window parameters, library versions).
	ModelMetadata string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:idx_embeddings_created_at"`
}

// TableName pins the table name instead of letting GORM derive it.
func (EmbeddingEntity) TableName() string {
	return "embeddings"
}
