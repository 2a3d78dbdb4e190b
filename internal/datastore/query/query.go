// Package query builds composable, reproducible catalog filters.
//
// A Builder is an immutable value: every predicate method returns a new
// Builder and never mutates the receiver, so a partially built query can
// be shared between goroutines and extended independently. Execution
// always appends the stable sort (syllables.created_at, syllables.id),
// so identical filters against an unchanged catalog return rows in the
// exact same order on every backend.
package query

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TimeField selects which timestamp a time-range predicate applies to.
type TimeField string

const (
	// TimeFieldSyllable filters on the syllable's own catalog timestamp.
	TimeFieldSyllable TimeField = "syllable"
	// TimeFieldRecording filters on the owning recording's catalog timestamp.
	TimeFieldRecording TimeField = "recording"
	// TimeFieldAnnotation filters on annotation timestamps; a syllable
	// matches when any of its annotations falls inside the range.
	TimeFieldAnnotation TimeField = "annotation"
)

type timeRange struct {
	field TimeField
	from  time.Time
	to    time.Time
}

type durationRange struct {
	min float64
	max float64
}

type annotationMatch struct {
	annotationType string
	key            string
	value          string
}

// Builder accumulates filter predicates over the syllables table.
// The zero value matches every syllable.
type Builder struct {
	timeRanges  []timeRange
	durations   []durationRange
	annotations []annotationMatch
	models      []string
	limit       int
	offset      int
}

// New returns an empty Builder.
func New() Builder {
	return Builder{}
}

// clone copies every slice so the returned Builder shares no state with
// the receiver. Value receivers already copy the struct header; without
// this, append could still write into a shared backing array.
func (b Builder) clone() Builder {
	b.timeRanges = append([]timeRange(nil), b.timeRanges...)
	b.durations = append([]durationRange(nil), b.durations...)
	b.annotations = append([]annotationMatch(nil), b.annotations...)
	b.models = append([]string(nil), b.models...)
	return b
}

// TimeRange restricts results to syllables whose selected timestamp
// falls inside [from, to].
func (b Builder) TimeRange(field TimeField, from, to time.Time) Builder {
	c := b.clone()
	c.timeRanges = append(c.timeRanges, timeRange{field: field, from: from, to: to})
	return c
}

// DurationBetween restricts results to syllables whose length
// (end_time - start_time, in seconds) falls inside [minSeconds, maxSeconds].
func (b Builder) DurationBetween(minSeconds, maxSeconds float64) Builder {
	c := b.clone()
	c.durations = append(c.durations, durationRange{min: minSeconds, max: maxSeconds})
	return c
}

// AnnotatedWith restricts results to syllables carrying an annotation
// with the given type, key, and value. Multiple calls require one
// matching annotation each.
func (b Builder) AnnotatedWith(annotationType, key, value string) Builder {
	c := b.clone()
	c.annotations = append(c.annotations, annotationMatch{
		annotationType: annotationType,
		key:            key,
		value:          value,
	})
	return c
}

// ModelVersion restricts results to syllables that have an embedding
// produced by the given model version. Multiple calls require one
// embedding per version.
func (b Builder) ModelVersion(version string) Builder {
	c := b.clone()
	c.models = append(c.models, version)
	return c
}

// Limit caps the number of rows returned. Zero means no cap.
func (b Builder) Limit(n int) Builder {
	c := b.clone()
	c.limit = n
	return c
}

// Offset skips the first n rows of the deterministic order.
func (b Builder) Offset(n int) Builder {
	c := b.clone()
	c.offset = n
	return c
}

// PredicateCount reports how many filter predicates are set.
func (b Builder) PredicateCount() int {
	return len(b.timeRanges) + len(b.durations) + len(b.annotations) + len(b.models)
}

// Describe renders the builder for audit logs, one token per predicate.
func (b Builder) Describe() string {
	parts := make([]string, 0, b.PredicateCount())
	for _, tr := range b.timeRanges {
		parts = append(parts, fmt.Sprintf("time[%s:%s..%s]",
			tr.field, tr.from.Format(time.RFC3339), tr.to.Format(time.RFC3339)))
	}
	for _, dr := range b.durations {
		parts = append(parts, fmt.Sprintf("duration[%g..%g]", dr.min, dr.max))
	}
	for _, am := range b.annotations {
		parts = append(parts, fmt.Sprintf("annotation[%s/%s=%s]", am.annotationType, am.key, am.value))
	}
	for _, mv := range b.models {
		parts = append(parts, fmt.Sprintf("model[%s]", mv))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// Apply translates the builder into a syllable query on db. Annotation
// and embedding predicates each get their own aliased join, so two
// annotation predicates mean the syllable must carry both annotations
// rather than one impossible row. DISTINCT collapses the row fan-out
// those joins introduce.
func (b Builder) Apply(db *gorm.DB) *gorm.DB {
	q := db.Table("syllables")

	needsRecordings := false
	for _, tr := range b.timeRanges {
		if tr.field == TimeFieldRecording {
			needsRecordings = true
		}
	}
	if needsRecordings {
		q = q.Joins("JOIN recordings ON recordings.id = syllables.recording_id")
	}

	annAlias := 0
	for _, tr := range b.timeRanges {
		switch tr.field {
		case TimeFieldSyllable:
			q = q.Where("syllables.created_at BETWEEN ? AND ?", tr.from, tr.to)
		case TimeFieldRecording:
			q = q.Where("recordings.created_at BETWEEN ? AND ?", tr.from, tr.to)
		case TimeFieldAnnotation:
			annAlias++
			alias := fmt.Sprintf("ann_%d", annAlias)
			q = q.Joins(fmt.Sprintf("JOIN annotations %s ON %s.syllable_id = syllables.id", alias, alias)).
				Where(fmt.Sprintf("%s.created_at BETWEEN ? AND ?", alias), tr.from, tr.to)
		}
	}

	for _, dr := range b.durations {
		q = q.Where("(syllables.end_time - syllables.start_time) BETWEEN ? AND ?", dr.min, dr.max)
	}

	for _, am := range b.annotations {
		annAlias++
		alias := fmt.Sprintf("ann_%d", annAlias)
		q = q.Joins(fmt.Sprintf("JOIN annotations %s ON %s.syllable_id = syllables.id", alias, alias)).
			Where(fmt.Sprintf("%s.annotation_type = ? AND %s.key = ? AND %s.value = ?", alias, alias, alias),
				am.annotationType, am.key, am.value)
	}

	for i, mv := range b.models {
		alias := fmt.Sprintf("emb_%d", i+1)
		q = q.Joins(fmt.Sprintf("JOIN embeddings %s ON %s.syllable_id = syllables.id", alias, alias)).
			Where(fmt.Sprintf("%s.model_version = ?", alias), mv)
	}

	q = q.Distinct("syllables.*").
		Order("syllables.created_at ASC").
		Order("syllables.id ASC")

	if b.offset > 0 {
		q = q.Offset(b.offset)
	}
	if b.limit > 0 {
		q = q.Limit(b.limit)
	}
	return q
}
