package repository

import "github.com/syrinxlabs/syrinx/internal/errors"

// Sentinel errors for repository operations. These typed errors let
// callers distinguish failure modes without string matching or
// GORM-specific errors.
var (
	// ErrInvalidInput rejects nil or empty required arguments.
	ErrInvalidInput = errors.NewStd("invalid input")

	// ErrDuplicateKey reports a unique constraint violation on Create.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrRecordingNotFound indicates the requested recording does not exist.
	ErrRecordingNotFound = errors.NewStd("recording not found")

	// ErrSyllableNotFound indicates the requested syllable does not exist.
	ErrSyllableNotFound = errors.NewStd("syllable not found")

	// ErrEmbeddingNotFound indicates the requested embedding does not exist.
	ErrEmbeddingNotFound = errors.NewStd("embedding not found")

	// ErrAnnotationNotFound indicates the requested annotation does not exist.
	ErrAnnotationNotFound = errors.NewStd("annotation not found")
)
