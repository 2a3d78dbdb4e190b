// Package query provides the query command for Syrinx
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/datastore/query"
	"github.com/syrinxlabs/syrinx/internal/datastore/repository"
	"github.com/syrinxlabs/syrinx/internal/logging"
)

// timeLayouts accepted by --from and --to.
var timeLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

// Command creates and returns the query command
func Command(settings *conf.Settings) *cobra.Command {
	var (
		minDuration  float64
		maxDuration  float64
		annotations  []string
		modelVersion []string
		fromStr      string
		toStr        string
		timeField    string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Select syllables from the catalog and print them as JSON lines",
		Long: `Query composes filter predicates from flags, runs them as a single
deterministic selection, and prints one JSON object per matching
syllable to stdout. Predicates combine with AND; repeating
--annotation or --model-version requires one match per occurrence.
Results are ordered by indexing time, then id, so the same catalog
always yields the same rows in the same order.`,
		Example: `  syrinx query --config syrinx.yml --min-duration 0.05 --max-duration 2.5
  syrinx query --config syrinx.yml --annotation label:species=ZF --model-version v2.1
  syrinx query --config syrinx.yml --from 2026-08-01 --to 2026-08-25 --limit 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := query.New()

			if cmd.Flags().Changed("min-duration") || cmd.Flags().Changed("max-duration") {
				upper := maxDuration
				if !cmd.Flags().Changed("max-duration") {
					upper = math.MaxFloat64
				}
				if minDuration < 0 || (cmd.Flags().Changed("max-duration") && upper < minDuration) {
					return fmt.Errorf("invalid duration range [%g, %g]", minDuration, upper)
				}
				b = b.DurationBetween(minDuration, upper)
			}

			for _, spec := range annotations {
				annType, key, value, err := splitAnnotation(spec)
				if err != nil {
					return err
				}
				b = b.AnnotatedWith(annType, key, value)
			}

			for _, version := range modelVersion {
				b = b.ModelVersion(version)
			}

			if fromStr != "" || toStr != "" {
				if fromStr == "" || toStr == "" {
					return fmt.Errorf("--from and --to must be given together")
				}
				field, err := parseTimeField(timeField)
				if err != nil {
					return err
				}
				from, err := parseTime(fromStr)
				if err != nil {
					return err
				}
				to, err := parseTime(toStr)
				if err != nil {
					return err
				}
				if to.Before(from) {
					return fmt.Errorf("--to %s is before --from %s", toStr, fromStr)
				}
				b = b.TimeRange(field, from, to)
			}

			if limit < 0 || offset < 0 {
				return fmt.Errorf("--limit and --offset must not be negative")
			}
			b = b.Limit(limit).Offset(offset)

			return runQuery(settings, b)
		},
	}

	cmd.Flags().Float64Var(&minDuration, "min-duration", 0, "Minimum syllable length in seconds")
	cmd.Flags().Float64Var(&maxDuration, "max-duration", 0, "Maximum syllable length in seconds")
	cmd.Flags().StringArrayVar(&annotations, "annotation", nil, "Require an annotation, as type:key=value (repeatable)")
	cmd.Flags().StringArrayVar(&modelVersion, "model-version", nil, "Require an embedding from this model version (repeatable)")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start of the time window (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "End of the time window (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&timeField, "time-field", "syllable", "Timestamp the window applies to: syllable, recording, or annotation")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows to print (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of rows to skip")

	return cmd
}

// splitAnnotation parses "type:key=value" into its three parts. The
// value may contain further '=' and ':' characters.
func splitAnnotation(spec string) (annType, key, value string, err error) {
	annType, rest, ok := strings.Cut(spec, ":")
	if !ok || annType == "" {
		return "", "", "", fmt.Errorf("annotation %q: want type:key=value", spec)
	}
	key, value, ok = strings.Cut(rest, "=")
	if !ok || key == "" {
		return "", "", "", fmt.Errorf("annotation %q: want type:key=value", spec)
	}
	return annType, key, value, nil
}

func parseTimeField(name string) (query.TimeField, error) {
	switch name {
	case "syllable":
		return query.TimeFieldSyllable, nil
	case "recording":
		return query.TimeFieldRecording, nil
	case "annotation":
		return query.TimeFieldAnnotation, nil
	default:
		return "", fmt.Errorf("unknown --time-field %q: want syllable, recording, or annotation", name)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q: want RFC 3339 or YYYY-MM-DD", s)
}

func runQuery(settings *conf.Settings, b query.Builder) error {
	store, err := datastore.New(settings, nil)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	queryTimeout, err := settings.Query.TimeoutDuration()
	if err != nil {
		return err
	}
	repos := repository.NewRepositories(store, queryTimeout, nil)

	rows, err := repos.Syllables.Filter(context.Background(), b)
	if err != nil {
		return err
	}

	logging.Debug("query executed",
		"predicates", b.Describe(),
		"rows", len(rows))

	enc := json.NewEncoder(os.Stdout)
	for _, syl := range rows {
		if err := enc.Encode(newResultRow(syl)); err != nil {
			return err
		}
	}
	return nil
}

// resultRow is the JSONL shape printed per matching syllable.
type resultRow struct {
	ID              uint            `json:"id"`
	RecordingID     uint            `json:"recording_id"`
	SpectrogramPath string          `json:"spectrogram_path"`
	StartTime       float64         `json:"start_time"`
	EndTime         float64         `json:"end_time"`
	Duration        float64         `json:"duration"`
	Checksum        string          `json:"checksum"`
	Bounds          json.RawMessage `json:"bounds,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newResultRow(syl *entities.SyllableEntity) resultRow {
	row := resultRow{
		ID:              syl.ID,
		RecordingID:     syl.RecordingID,
		SpectrogramPath: syl.SpectrogramPath,
		StartTime:       syl.StartTime,
		EndTime:         syl.EndTime,
		Duration:        syl.EndTime - syl.StartTime,
		Checksum:        syl.Checksum,
		CreatedAt:       syl.CreatedAt,
	}
	if json.Valid([]byte(syl.Bounds)) {
		row.Bounds = json.RawMessage(syl.Bounds)
	}
	return row
}
