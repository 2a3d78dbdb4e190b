// Package indexer walks the bulk data roots, verifies artifact
// checksums, and catalogs recordings, syllables, embeddings, and
// annotations in batched transactions. A run either brings the catalog
// forward or leaves it untouched; it never commits rows for artifacts it
// could not verify.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/syrinxlabs/syrinx/internal/audioinfo"
	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/cpuspec"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/datastore/repository"
	"github.com/syrinxlabs/syrinx/internal/errors"
	"github.com/syrinxlabs/syrinx/internal/logging"
	"github.com/syrinxlabs/syrinx/internal/observability/metrics"
)

// defaultBatchSize is used when the configuration does not set one. It
// matches the smallest batch the configuration accepts.
const defaultBatchSize = 1000

// parentCacheTTL bounds how long resolved parent IDs are kept. Within a
// run the cache bridges the phases (syllables resolve recordings the run
// just inserted); across runs it merely warms re-ingests.
const parentCacheTTL = 10 * time.Minute

// Indexer ingests one filesystem tree into the catalog.
type Indexer struct {
	settings  *conf.Settings
	store     datastore.Interface
	repos     *repository.Repositories
	metrics   *metrics.IndexerMetrics
	logger    *slog.Logger
	algorithm string
	batchSize int
	// resolved caches parent path -> ID lookups, keyed with a
	// "recording:" or "syllable:" prefix.
	resolved *cache.Cache
}

// New creates an Indexer over the configured data roots. Metrics may be
// nil; everything else is required.
func New(settings *conf.Settings, store datastore.Interface, repos *repository.Repositories, m *metrics.IndexerMetrics) (*Indexer, error) {
	if settings == nil {
		return nil, errors.Newf("settings must not be nil").
			Component("indexer").
			Category(errors.CategoryValidation).
			Build()
	}
	if store == nil || repos == nil {
		return nil, errors.Newf("indexer requires a datastore and repositories").
			Component("indexer").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, err := newHasher(settings.Ingest.Checksum); err != nil {
		return nil, err
	}

	batchSize := settings.Ingest.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Indexer{
		settings:  settings,
		store:     store,
		repos:     repos,
		metrics:   m,
		logger:    serviceLogger(),
		algorithm: settings.Ingest.Checksum,
		batchSize: batchSize,
		resolved:  cache.New(parentCacheTTL, 2*parentCacheTTL),
	}, nil
}

func serviceLogger() *slog.Logger {
	if l := logging.ForService("indexer"); l != nil {
		return l
	}
	return slog.Default().With("service", "indexer")
}

// TableCounts reports what a run did to one catalog table.
type TableCounts struct {
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

// Summary describes one completed (or aborted) ingest run. On error the
// counts cover the batches that committed before the abort.
type Summary struct {
	RunID               string        `json:"run_id"`
	AudioFiles          int           `json:"audio_files"`
	SegmentsManifests   int           `json:"segments_manifests"`
	EmbeddingsManifests int           `json:"embeddings_manifests"`
	Recordings          TableCounts   `json:"recordings"`
	Syllables           TableCounts   `json:"syllables"`
	Embeddings          TableCounts   `json:"embeddings"`
	Annotations         TableCounts   `json:"annotations"`
	Elapsed             time.Duration `json:"elapsed"`
}

// TotalInserted sums new rows across all four tables.
func (s *Summary) TotalInserted() int64 {
	return s.Recordings.Inserted + s.Syllables.Inserted + s.Embeddings.Inserted + s.Annotations.Inserted
}

// TotalSkipped sums already-cataloged rows across all four tables.
func (s *Summary) TotalSkipped() int64 {
	return s.Recordings.Skipped + s.Syllables.Skipped + s.Embeddings.Skipped + s.Annotations.Skipped
}

// Index runs one full ingest: audio recordings first, then segmented
// syllables with their annotations, then embeddings, so parents are
// always committed before their children. The returned summary is
// populated even when err is non-nil.
func (ix *Indexer) Index(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.New().String()}
	logger := ix.logger.With("run_id", summary.RunID)

	logger.Info("ingest run starting",
		"audio_root", ix.settings.DataRoots.Audio,
		"features_root", ix.settings.DataRoots.Features,
		"algorithm", ix.algorithm,
		"batch_size", ix.batchSize)

	phases := []struct {
		name string
		run  func(context.Context, *slog.Logger, *Summary) error
	}{
		{"recordings", ix.ingestRecordings},
		{"syllables", ix.ingestSyllables},
		{"embeddings", ix.ingestEmbeddings},
	}
	for _, phase := range phases {
		phaseStart := time.Now()
		if err := phase.run(ctx, logger, summary); err != nil {
			summary.Elapsed = time.Since(start)
			if ix.metrics != nil {
				ix.metrics.RecordIngestRun("error")
			}
			logger.Error("ingest run aborted",
				"phase", phase.name,
				"elapsed_ms", summary.Elapsed.Milliseconds(),
				"error", err)
			return summary, err
		}
		if ix.metrics != nil {
			ix.metrics.RecordPhaseDuration(phase.name, time.Since(phaseStart).Seconds())
		}
	}

	summary.Elapsed = time.Since(start)
	if ix.metrics != nil {
		ix.metrics.RecordIngestRun("success")
	}
	logger.Info("ingest run complete",
		"inserted", summary.TotalInserted(),
		"skipped", summary.TotalSkipped(),
		"elapsed_ms", summary.Elapsed.Milliseconds())
	return summary, nil
}

// workerCount sizes the checksum pool for fileCount files. An explicit
// configuration wins; otherwise the count is derived from CPU topology.
func (ix *Indexer) workerCount(fileCount int) int {
	if fileCount <= 0 {
		return 1
	}
	if w := ix.settings.Ingest.Workers; w > 0 {
		return min(w, fileCount)
	}
	return cpuspec.GetCPUSpec().IngestWorkers(fileCount)
}

// discover walks root for pattern and reports the result.
func (ix *Indexer) discover(root, pattern, kind string, logger *slog.Logger) ([]discoveredFile, error) {
	start := time.Now()
	files, err := discoverFiles(root, pattern)
	if err != nil {
		return nil, err
	}
	if ix.metrics != nil {
		ix.metrics.RecordDiscoveryDuration(root, time.Since(start).Seconds())
		ix.metrics.RecordFilesDiscovered(kind, len(files))
	}
	logger.Info("discovery complete",
		"kind", kind,
		"root", root,
		"pattern", pattern,
		"files", len(files))
	return files, nil
}

// ingestRecordings catalogs every audio file under the audio root:
// checksum, header fields, naming-convention metadata, and the optional
// sidecar, committed in batches.
func (ix *Indexer) ingestRecordings(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	files, err := ix.discover(ix.settings.DataRoots.Audio, ix.settings.Ingest.Globs.Audio, "audio", logger)
	if err != nil {
		return err
	}
	summary.AudioFiles = len(files)
	if len(files) == 0 {
		return nil
	}

	workers := ix.workerCount(len(files))
	if ix.metrics != nil {
		ix.metrics.UpdateWorkerCount(workers)
	}

	rows := make([]*entities.RecordingEntity, len(files))
	err = forEachFile(ctx, workers, len(files), func(i int) error {
		f := files[i]

		sum, _, err := ix.checksumFile(f.Abs)
		if err != nil {
			return err
		}
		info, err := audioinfo.ReadInfo(f.Abs)
		if err != nil {
			return errors.New(err).
				Component("indexer").
				Category(errors.CategoryValidation).
				Context("operation", "audio_info").
				Context("path", f.Rel).
				Build()
		}
		lifted, raw, err := readSidecar(f.Abs)
		if err != nil {
			return err
		}
		extra, err := buildRecordingExtra(f.Rel, info, lifted, raw)
		if err != nil {
			return err
		}

		rows[i] = &entities.RecordingEntity{
			FilePath: f.Rel,
			Checksum: sum,
			Extra:    extra,
		}
		return nil
	})
	if err != nil {
		return err
	}

	return ix.commitRecordings(ctx, logger, rows, summary)
}

func (ix *Indexer) commitRecordings(ctx context.Context, logger *slog.Logger, rows []*entities.RecordingEntity, summary *Summary) error {
	seq := 0
	for start := 0; start < len(rows); start += ix.batchSize {
		batch := rows[start:min(start+ix.batchSize, len(rows))]
		seq++

		batchStart := time.Now()
		var res repository.BulkResult
		err := ix.store.RetryOnTransient(ctx, "ingest_recordings_batch", func() error {
			res = repository.BulkResult{}
			resetRecordingIDs(batch)
			return ix.store.WithSession(ctx, func(sess *datastore.Session) error {
				if _, err := ix.requireUnchanged(ctx, sess, recordingPaths(batch), recordingSums(batch), ix.repos.Recordings.ChecksumsByPaths); err != nil {
					return err
				}
				r, err := ix.repos.Recordings.BulkCreate(ctx, sess, batch)
				if err != nil {
					return err
				}
				res = r
				return nil
			})
		})
		if err != nil {
			return err
		}

		summary.Recordings.Inserted += res.Inserted
		summary.Recordings.Skipped += res.Skipped
		ix.recordBatch(logger, "recordings", seq, len(batch), res, batchStart)
	}
	return nil
}

// ingestSyllables parses every segments manifest under the features
// root, verifies each referenced spectrogram against its declared
// checksum, and catalogs syllables plus their manifest labels. Labels
// become annotation rows only for syllables inserted by this run, in the
// same transaction, so re-ingesting never duplicates them.
func (ix *Indexer) ingestSyllables(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	files, err := ix.discover(ix.settings.DataRoots.Features, ix.settings.Ingest.Globs.Segments, "segments", logger)
	if err != nil {
		return err
	}
	summary.SegmentsManifests = len(files)
	if len(files) == 0 {
		return nil
	}

	manifests := make([]*segmentsManifest, 0, len(files))
	for _, f := range files {
		m, err := ix.parseSegmentsManifest(f.Abs)
		if err != nil {
			return err
		}
		manifests = append(manifests, m)
	}

	recordingRels := make([]string, 0, len(manifests))
	for _, m := range manifests {
		recordingRels = append(recordingRels, normalizeArtifactPath(ix.settings.DataRoots.Audio, m.Recording))
	}
	recordingIDs, err := ix.resolveIDs(ctx, "recording:", recordingRels, ix.repos.Recordings.IDsByPaths)
	if err != nil {
		return err
	}

	var (
		refs   []artifactRef
		rows   []*entities.SyllableEntity
		labels [][]segmentLabel
	)
	for mi, m := range manifests {
		recID, ok := recordingIDs[recordingRels[mi]]
		if !ok {
			ix.recordIntegrityFailure("missing_parent")
			return errors.Newf("segments manifest %s references unknown recording %s", m.Path, m.Recording).
				Component("indexer").
				Category(errors.CategoryIntegrity).
				Context("manifest", m.Path).
				Context("recording", m.Recording).
				Build()
		}
		for si := range m.Segments {
			seg := &m.Segments[si]
			rel := normalizeArtifactPath(ix.settings.DataRoots.Features, seg.Spectrogram)
			refs = append(refs, artifactRef{
				Manifest: m.Path,
				Rel:      rel,
				Abs:      resolveArtifactPath(ix.settings.DataRoots.Features, rel),
				Expected: seg.Checksum,
			})
			bounds := ""
			if len(seg.Bounds) > 0 {
				bounds = string(seg.Bounds)
			}
			rows = append(rows, &entities.SyllableEntity{
				RecordingID:     recID,
				SpectrogramPath: rel,
				StartTime:       seg.Start,
				EndTime:         seg.End,
				Checksum:        seg.Checksum,
				Bounds:          bounds,
			})
			labels = append(labels, seg.Labels)
		}
	}

	if ix.metrics != nil {
		ix.metrics.UpdateWorkerCount(ix.workerCount(len(refs)))
	}
	if _, err := ix.verifyArtifacts(ctx, refs); err != nil {
		return err
	}

	return ix.commitSyllables(ctx, logger, rows, labels, summary)
}

func (ix *Indexer) commitSyllables(ctx context.Context, logger *slog.Logger, rows []*entities.SyllableEntity, labels [][]segmentLabel, summary *Summary) error {
	seq := 0
	for start := 0; start < len(rows); start += ix.batchSize {
		end := min(start+ix.batchSize, len(rows))
		batch := rows[start:end]
		batchLabels := labels[start:end]
		seq++

		batchStart := time.Now()
		var res, annRes repository.BulkResult
		err := ix.store.RetryOnTransient(ctx, "ingest_syllables_batch", func() error {
			res, annRes = repository.BulkResult{}, repository.BulkResult{}
			// A rolled-back attempt can leave primary keys assigned on
			// the structs; clear them so the next attempt inserts with
			// fresh auto-assigned keys.
			for _, syl := range batch {
				syl.ID = 0
			}
			return ix.store.WithSession(ctx, func(sess *datastore.Session) error {
				stored, err := ix.requireUnchanged(ctx, sess, syllablePaths(batch), syllableSums(batch), ix.repos.Syllables.ChecksumsByPaths)
				if err != nil {
					return err
				}
				r, err := ix.repos.Syllables.BulkCreate(ctx, sess, batch)
				if err != nil {
					return err
				}
				res = r

				anns, err := ix.buildBatchAnnotations(ctx, sess, batch, batchLabels, stored)
				if err != nil {
					return err
				}
				if len(anns) > 0 {
					ar, err := ix.repos.Annotations.BulkCreate(ctx, sess, anns)
					if err != nil {
						return err
					}
					annRes = ar
				}
				return nil
			})
		})
		if err != nil {
			return err
		}

		summary.Syllables.Inserted += res.Inserted
		summary.Syllables.Skipped += res.Skipped
		summary.Annotations.Inserted += annRes.Inserted
		summary.Annotations.Skipped += annRes.Skipped
		ix.recordBatch(logger, "syllables", seq, len(batch), res, batchStart)
		if annRes.Inserted > 0 && ix.metrics != nil {
			ix.metrics.RecordRecordsUpserted("annotations", "inserted", int(annRes.Inserted))
		}
	}
	return nil
}

// ingestEmbeddings parses every embeddings manifest under the features
// root, verifies each referenced vector file, and catalogs embeddings
// against the syllables their spectrograms resolve to.
func (ix *Indexer) ingestEmbeddings(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	files, err := ix.discover(ix.settings.DataRoots.Features, ix.settings.Ingest.Globs.Embeddings, "embeddings", logger)
	if err != nil {
		return err
	}
	summary.EmbeddingsManifests = len(files)
	if len(files) == 0 {
		return nil
	}

	manifests := make([]*embeddingsManifest, 0, len(files))
	var spectrogramRels []string
	for _, f := range files {
		m, err := ix.parseEmbeddingsManifest(f.Abs)
		if err != nil {
			return err
		}
		manifests = append(manifests, m)
		for i := range m.Embeddings {
			spectrogramRels = append(spectrogramRels,
				normalizeArtifactPath(ix.settings.DataRoots.Features, m.Embeddings[i].Spectrogram))
		}
	}

	syllableIDs, err := ix.resolveIDs(ctx, "syllable:", spectrogramRels, ix.repos.Syllables.IDsByPaths)
	if err != nil {
		return err
	}

	var (
		refs []artifactRef
		rows []*entities.EmbeddingEntity
	)
	relIdx := 0
	for _, m := range manifests {
		for i := range m.Embeddings {
			emb := &m.Embeddings[i]
			specRel := spectrogramRels[relIdx]
			relIdx++

			sylID, ok := syllableIDs[specRel]
			if !ok {
				ix.recordIntegrityFailure("missing_parent")
				return errors.Newf("embeddings manifest %s references unknown spectrogram %s", m.Path, emb.Spectrogram).
					Component("indexer").
					Category(errors.CategoryIntegrity).
					Context("manifest", m.Path).
					Context("spectrogram", emb.Spectrogram).
					Build()
			}

			rel := normalizeArtifactPath(ix.settings.DataRoots.Features, emb.Vector)
			refs = append(refs, artifactRef{
				Manifest: m.Path,
				Rel:      rel,
				Abs:      resolveArtifactPath(ix.settings.DataRoots.Features, rel),
				Expected: emb.Checksum,
			})
			meta := ""
			if len(emb.ModelMetadata) > 0 {
				meta = string(emb.ModelMetadata)
			}
			rows = append(rows, &entities.EmbeddingEntity{
				SyllableID:    sylID,
				ModelVersion:  m.ModelVersion,
				EmbeddingPath: rel,
				Dimensions:    emb.Dimensions,
				Checksum:      emb.Checksum,
				ModelMetadata: meta,
			})
		}
	}

	if ix.metrics != nil {
		ix.metrics.UpdateWorkerCount(ix.workerCount(len(refs)))
	}
	if _, err := ix.verifyArtifacts(ctx, refs); err != nil {
		return err
	}

	return ix.commitEmbeddings(ctx, logger, rows, summary)
}

func (ix *Indexer) commitEmbeddings(ctx context.Context, logger *slog.Logger, rows []*entities.EmbeddingEntity, summary *Summary) error {
	seq := 0
	for start := 0; start < len(rows); start += ix.batchSize {
		batch := rows[start:min(start+ix.batchSize, len(rows))]
		seq++

		batchStart := time.Now()
		var res repository.BulkResult
		err := ix.store.RetryOnTransient(ctx, "ingest_embeddings_batch", func() error {
			res = repository.BulkResult{}
			resetEmbeddingIDs(batch)
			return ix.store.WithSession(ctx, func(sess *datastore.Session) error {
				if _, err := ix.requireUnchanged(ctx, sess, embeddingPaths(batch), embeddingSums(batch), ix.repos.Embeddings.ChecksumsByPaths); err != nil {
					return err
				}
				r, err := ix.repos.Embeddings.BulkCreate(ctx, sess, batch)
				if err != nil {
					return err
				}
				res = r
				return nil
			})
		})
		if err != nil {
			return err
		}

		summary.Embeddings.Inserted += res.Inserted
		summary.Embeddings.Skipped += res.Skipped
		ix.recordBatch(logger, "embeddings", seq, len(batch), res, batchStart)
	}
	return nil
}

// storedChecksums reads path -> checksum inside the caller's session for
// one catalog table.
type storedChecksums func(context.Context, *datastore.Session, []string) (map[string]string, error)

// requireUnchanged compares the computed checksum of every
// already-cataloged path in the batch against its stored value, inside
// the commit transaction. A divergence means the artifact was modified
// after it was cataloged; the run aborts and the stored row stays as it
// was. The returned map holds the stored checksums, so callers also know
// which paths were already cataloged before this batch.
func (ix *Indexer) requireUnchanged(ctx context.Context, sess *datastore.Session, paths []string, sums map[string]string, lookup storedChecksums) (map[string]string, error) {
	stored, err := lookup(ctx, sess, paths)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		prev, ok := stored[p]
		if !ok || prev == sums[p] {
			continue
		}
		ix.recordIntegrityFailure("checksum_mismatch")
		return nil, errors.Newf("checksum mismatch for already cataloged %s", p).
			Component("indexer").
			Category(errors.CategoryIntegrity).
			ChecksumContext(p, prev, sums[p]).
			Context("algorithm", ix.algorithm).
			Build()
	}
	return stored, nil
}

// buildBatchAnnotations turns manifest labels into annotation rows for
// the syllables this batch actually inserted. Newness comes from the
// pre-insert checksum read, not from primary keys the driver may or may
// not have back-filled, and the IDs are read back through the session so
// uncommitted rows resolve. Labels on already-cataloged syllables are
// dropped: they were recorded when the syllable first entered the
// catalog.
func (ix *Indexer) buildBatchAnnotations(ctx context.Context, sess *datastore.Session, batch []*entities.SyllableEntity, batchLabels [][]segmentLabel, preExisting map[string]string) ([]*entities.AnnotationEntity, error) {
	var newPaths []string
	for i, syl := range batch {
		if len(batchLabels[i]) == 0 {
			continue
		}
		if _, existed := preExisting[syl.SpectrogramPath]; existed {
			continue
		}
		newPaths = append(newPaths, syl.SpectrogramPath)
	}
	if len(newPaths) == 0 {
		return nil, nil
	}

	ids, err := ix.repos.Syllables.IDsByPathsInSession(ctx, sess, newPaths)
	if err != nil {
		return nil, err
	}

	var anns []*entities.AnnotationEntity
	for i, syl := range batch {
		id, ok := ids[syl.SpectrogramPath]
		if !ok {
			continue
		}
		for _, lb := range batchLabels[i] {
			anns = append(anns, &entities.AnnotationEntity{
				SyllableID:     id,
				AnnotationType: lb.Type,
				Key:            lb.Key,
				Value:          lb.Value,
			})
		}
	}
	return anns, nil
}

// resolveIDs maps rel paths to IDs using lookup, with a positive cache
// in front keyed by prefix.
func (ix *Indexer) resolveIDs(ctx context.Context, prefix string, rels []string, lookup func(context.Context, []string) (map[string]uint, error)) (map[string]uint, error) {
	out := make(map[string]uint, len(rels))
	var missing []string
	seen := make(map[string]struct{}, len(rels))
	for _, rel := range rels {
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		if v, ok := ix.resolved.Get(prefix + rel); ok {
			out[rel] = v.(uint)
			continue
		}
		missing = append(missing, rel)
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	for rel, id := range found {
		out[rel] = id
		ix.resolved.Set(prefix+rel, id, cache.DefaultExpiration)
	}
	return out, nil
}

// recordBatch emits the per-batch audit record and metrics.
func (ix *Indexer) recordBatch(logger *slog.Logger, table string, seq, records int, res repository.BulkResult, start time.Time) {
	elapsed := time.Since(start)
	if ix.metrics != nil {
		ix.metrics.RecordBatchCommit(table, elapsed.Seconds(), records)
		ix.metrics.RecordRecordsUpserted(table, "inserted", int(res.Inserted))
		ix.metrics.RecordRecordsUpserted(table, "skipped", int(res.Skipped))
	}
	logger.Info("batch committed",
		"table", table,
		"batch", seq,
		"records", records,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"elapsed_ms", elapsed.Milliseconds())
}

func resetRecordingIDs(batch []*entities.RecordingEntity) {
	for _, r := range batch {
		r.ID = 0
	}
}

func resetEmbeddingIDs(batch []*entities.EmbeddingEntity) {
	for _, e := range batch {
		e.ID = 0
	}
}

func recordingPaths(batch []*entities.RecordingEntity) []string {
	out := make([]string, len(batch))
	for i, r := range batch {
		out[i] = r.FilePath
	}
	return out
}

func recordingSums(batch []*entities.RecordingEntity) map[string]string {
	out := make(map[string]string, len(batch))
	for _, r := range batch {
		out[r.FilePath] = r.Checksum
	}
	return out
}

func syllablePaths(batch []*entities.SyllableEntity) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.SpectrogramPath
	}
	return out
}

func syllableSums(batch []*entities.SyllableEntity) map[string]string {
	out := make(map[string]string, len(batch))
	for _, s := range batch {
		out[s.SpectrogramPath] = s.Checksum
	}
	return out
}

func embeddingPaths(batch []*entities.EmbeddingEntity) []string {
	out := make([]string, len(batch))
	for i, e := range batch {
		out[i] = e.EmbeddingPath
	}
	return out
}

func embeddingSums(batch []*entities.EmbeddingEntity) map[string]string {
	out := make(map[string]string, len(batch))
	for _, e := range batch {
		out[e.EmbeddingPath] = e.Checksum
	}
	return out
}
