package indexer

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/syrinxlabs/syrinx/internal/datastore/query"
)

// ValidationFailure describes one cataloged artifact that failed
// re-verification against the filesystem.
type ValidationFailure struct {
	Table    string `json:"table"`
	ID       uint   `json:"id"`
	Path     string `json:"path"`
	Reason   string `json:"reason"` // missing_file, checksum_mismatch, unreadable
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Report summarizes one validation sweep over the whole catalog.
type Report struct {
	RunID    string              `json:"run_id"`
	Checked  int                 `json:"checked"`
	Failures []ValidationFailure `json:"failures,omitempty"`
	Elapsed  time.Duration       `json:"elapsed"`
}

// OK reports whether every checked artifact matched its cataloged
// checksum.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// Validate re-hashes every cataloged artifact and compares it against
// the stored checksum. Unlike ingest it does not stop at the first
// problem: the report lists every missing, unreadable, or modified
// artifact so an operator can repair the tree in one pass. Only a
// database or cancellation error aborts the sweep.
func (ix *Indexer) Validate(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String()}
	logger := ix.logger.With("run_id", report.RunID)

	logger.Info("validation sweep starting",
		"audio_root", ix.settings.DataRoots.Audio,
		"features_root", ix.settings.DataRoots.Features,
		"algorithm", ix.algorithm)

	if err := ix.validateRecordings(ctx, report); err != nil {
		return report, err
	}
	if err := ix.validateSyllables(ctx, report); err != nil {
		return report, err
	}
	if err := ix.validateEmbeddings(ctx, report); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(start)
	logger.Info("validation sweep complete",
		"checked", report.Checked,
		"failures", len(report.Failures),
		"elapsed_ms", report.Elapsed.Milliseconds())
	return report, nil
}

// validationTarget is one row to re-verify.
type validationTarget struct {
	table    string
	id       uint
	rel      string
	abs      string
	expected string
}

func (ix *Indexer) validateRecordings(ctx context.Context, report *Report) error {
	offset := 0
	for {
		page, err := ix.repos.Recordings.List(ctx, ix.batchSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		targets := make([]validationTarget, len(page))
		for i, rec := range page {
			targets[i] = validationTarget{
				table:    "recordings",
				id:       rec.ID,
				rel:      rec.FilePath,
				abs:      resolveArtifactPath(ix.settings.DataRoots.Audio, rec.FilePath),
				expected: rec.Checksum,
			}
		}
		if err := ix.verifyTargets(ctx, targets, report); err != nil {
			return err
		}

		offset += len(page)
		if len(page) < ix.batchSize {
			return nil
		}
	}
}

func (ix *Indexer) validateSyllables(ctx context.Context, report *Report) error {
	offset := 0
	for {
		page, err := ix.repos.Syllables.Filter(ctx, query.New().Limit(ix.batchSize).Offset(offset))
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		targets := make([]validationTarget, len(page))
		for i, syl := range page {
			targets[i] = validationTarget{
				table:    "syllables",
				id:       syl.ID,
				rel:      syl.SpectrogramPath,
				abs:      resolveArtifactPath(ix.settings.DataRoots.Features, syl.SpectrogramPath),
				expected: syl.Checksum,
			}
		}
		if err := ix.verifyTargets(ctx, targets, report); err != nil {
			return err
		}

		offset += len(page)
		if len(page) < ix.batchSize {
			return nil
		}
	}
}

func (ix *Indexer) validateEmbeddings(ctx context.Context, report *Report) error {
	offset := 0
	for {
		page, err := ix.repos.Embeddings.List(ctx, ix.batchSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		targets := make([]validationTarget, len(page))
		for i, emb := range page {
			targets[i] = validationTarget{
				table:    "embeddings",
				id:       emb.ID,
				rel:      emb.EmbeddingPath,
				abs:      resolveArtifactPath(ix.settings.DataRoots.Features, emb.EmbeddingPath),
				expected: emb.Checksum,
			}
		}
		if err := ix.verifyTargets(ctx, targets, report); err != nil {
			return err
		}

		offset += len(page)
		if len(page) < ix.batchSize {
			return nil
		}
	}
}

// verifyTargets re-hashes one page of rows in parallel. Failures land in
// the report; only context cancellation propagates as an error.
func (ix *Indexer) verifyTargets(ctx context.Context, targets []validationTarget, report *Report) error {
	failures := make([]*ValidationFailure, len(targets))
	err := forEachFile(ctx, ix.workerCount(len(targets)), len(targets), func(i int) error {
		t := targets[i]

		if _, err := os.Stat(t.abs); err != nil {
			if os.IsNotExist(err) {
				failures[i] = &ValidationFailure{
					Table: t.table, ID: t.id, Path: t.rel,
					Reason: "missing_file",
				}
				return nil
			}
			failures[i] = &ValidationFailure{
				Table: t.table, ID: t.id, Path: t.rel,
				Reason: "unreadable",
			}
			return nil
		}

		sum, _, err := ix.checksumFile(t.abs)
		if err != nil {
			failures[i] = &ValidationFailure{
				Table: t.table, ID: t.id, Path: t.rel,
				Reason: "unreadable",
			}
			return nil
		}
		if sum != t.expected {
			failures[i] = &ValidationFailure{
				Table: t.table, ID: t.id, Path: t.rel,
				Reason:   "checksum_mismatch",
				Expected: t.expected,
				Actual:   sum,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	report.Checked += len(targets)
	for _, f := range failures {
		if f == nil {
			continue
		}
		ix.recordIntegrityFailure(f.Reason)
		ix.logger.Warn("validation failure",
			"table", f.Table,
			"id", f.ID,
			"path", f.Path,
			"reason", f.Reason)
		report.Failures = append(report.Failures, *f)
	}
	return nil
}
