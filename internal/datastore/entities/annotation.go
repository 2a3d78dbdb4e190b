package entities

import "time"

// AnnotationEntity represents one key/value label attached to a syllable.
// Maps to the 'annotations' table.
type AnnotationEntity struct {
	ID             uint      `gorm:"primaryKey"`
	SyllableID     uint      `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:SyllableID;references:ID"`
	AnnotationType string    `gorm:"index:idx_annotations_type_key,priority:1;size:64;not null"`
	Key            string    `gorm:"index:idx_annotations_type_key,priority:2;size:128;not null"`
	Value          string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index:idx_annotations_created_at"`
}

// TableName pins the table name instead of letting GORM derive it.
func (AnnotationEntity) TableName() string {
	return "annotations"
}
