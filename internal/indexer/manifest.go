package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// manifestVersion is the sidecar manifest schema this build understands.
// Unknown versions are rejected rather than guessed at.
const manifestVersion = 1

// segmentLabel is one manifest-carried annotation for a segment.
type segmentLabel struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// manifestSegment describes one spectrogram artifact within a segments
// manifest. Checksum is normalized to a bare hex digest during parsing.
type manifestSegment struct {
	Spectrogram string          `json:"spectrogram"`
	Start       float64         `json:"start"`
	End         float64         `json:"end"`
	Checksum    string          `json:"checksum"`
	Bounds      json.RawMessage `json:"bounds"`
	Labels      []segmentLabel  `json:"labels"`
}

// segmentsManifest is the <base>.segments.json sidecar the segmentation
// pipeline emits next to its spectrogram arrays. It is the integrity
// contract between that pipeline and the catalog.
type segmentsManifest struct {
	Path string `json:"-"` // manifest location, for error context

	Version     int               `json:"version"`
	Recording   string            `json:"recording"`
	GeneratedAt time.Time         `json:"generated_at"`
	Segments    []manifestSegment `json:"segments"`
}

// manifestEmbedding describes one vector artifact within an embeddings
// manifest.
type manifestEmbedding struct {
	Spectrogram   string          `json:"spectrogram"`
	Vector        string          `json:"vector"`
	Dimensions    int             `json:"dimensions"`
	Checksum      string          `json:"checksum"`
	ModelMetadata json.RawMessage `json:"model_metadata"`
}

// embeddingsManifest is the <base>.embeddings.json sidecar emitted per
// model run.
type embeddingsManifest struct {
	Path string `json:"-"`

	Version      int                 `json:"version"`
	ModelVersion string              `json:"model_version"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Embeddings   []manifestEmbedding `json:"embeddings"`
}

// manifestError reports a schema violation in a sidecar manifest. These
// are always fatal: a broken manifest means the upstream pipeline is
// broken, and silently skipping it would let the catalog drift.
func manifestError(path, kind, detail string) error {
	return errors.Newf("invalid %s manifest %s: %s", kind, path, detail).
		Component("indexer").
		Category(errors.CategoryValidation).
		Context("manifest", path).
		Build()
}

// parseSegmentsManifest reads and validates one segments manifest.
// Segment checksums must carry the configured algorithm prefix and are
// normalized to bare hex in place.
func (ix *Indexer) parseSegmentsManifest(path string) (*segmentsManifest, error) {
	const kind = "segments"

	data, err := os.ReadFile(path)
	if err != nil {
		ix.recordManifestParseError(kind, "read")
		return nil, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "manifest_parse").
			Context("manifest", path).
			Build()
	}

	var m segmentsManifest
	if err := json.Unmarshal(data, &m); err != nil {
		ix.recordManifestParseError(kind, "decode")
		return nil, manifestError(path, kind, err.Error())
	}
	m.Path = path

	if m.Version != manifestVersion {
		ix.recordManifestParseError(kind, "schema")
		return nil, manifestError(path, kind, fmt.Sprintf("unsupported manifest version %d", m.Version))
	}
	if m.Recording == "" {
		ix.recordManifestParseError(kind, "schema")
		return nil, manifestError(path, kind, "missing recording path")
	}

	for i := range m.Segments {
		seg := &m.Segments[i]
		if seg.Spectrogram == "" {
			ix.recordManifestParseError(kind, "schema")
			return nil, manifestError(path, kind, fmt.Sprintf("segment %d is missing its spectrogram path", i))
		}
		if seg.End <= seg.Start {
			ix.recordManifestParseError(kind, "schema")
			return nil, manifestError(path, kind,
				fmt.Sprintf("segment %q has end %.6f <= start %.6f", seg.Spectrogram, seg.End, seg.Start))
		}
		digest, err := ix.manifestDigest(path, kind, seg.Spectrogram, seg.Checksum)
		if err != nil {
			return nil, err
		}
		seg.Checksum = digest

		for j, label := range seg.Labels {
			if label.Type == "" || label.Key == "" {
				ix.recordManifestParseError(kind, "schema")
				return nil, manifestError(path, kind,
					fmt.Sprintf("segment %q label %d is missing type or key", seg.Spectrogram, j))
			}
		}
	}

	if ix.metrics != nil {
		ix.metrics.RecordManifestParsed(kind, "success")
	}
	return &m, nil
}

// parseEmbeddingsManifest reads and validates one embeddings manifest.
func (ix *Indexer) parseEmbeddingsManifest(path string) (*embeddingsManifest, error) {
	const kind = "embeddings"

	data, err := os.ReadFile(path)
	if err != nil {
		ix.recordManifestParseError(kind, "read")
		return nil, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "manifest_parse").
			Context("manifest", path).
			Build()
	}

	var m embeddingsManifest
	if err := json.Unmarshal(data, &m); err != nil {
		ix.recordManifestParseError(kind, "decode")
		return nil, manifestError(path, kind, err.Error())
	}
	m.Path = path

	if m.Version != manifestVersion {
		ix.recordManifestParseError(kind, "schema")
		return nil, manifestError(path, kind, fmt.Sprintf("unsupported manifest version %d", m.Version))
	}
	if m.ModelVersion == "" {
		ix.recordManifestParseError(kind, "schema")
		return nil, manifestError(path, kind, "missing model_version")
	}

	for i := range m.Embeddings {
		emb := &m.Embeddings[i]
		if emb.Spectrogram == "" {
			ix.recordManifestParseError(kind, "schema")
			return nil, manifestError(path, kind, fmt.Sprintf("embedding %d is missing its spectrogram path", i))
		}
		if emb.Vector == "" {
			ix.recordManifestParseError(kind, "schema")
			return nil, manifestError(path, kind, fmt.Sprintf("embedding %q is missing its vector path", emb.Spectrogram))
		}
		if emb.Dimensions <= 0 {
			ix.recordManifestParseError(kind, "schema")
			return nil, manifestError(path, kind,
				fmt.Sprintf("embedding %q has non-positive dimensions %d", emb.Vector, emb.Dimensions))
		}
		digest, err := ix.manifestDigest(path, kind, emb.Vector, emb.Checksum)
		if err != nil {
			return nil, err
		}
		emb.Checksum = digest
	}

	if ix.metrics != nil {
		ix.metrics.RecordManifestParsed(kind, "success")
	}
	return &m, nil
}

// manifestDigest validates one "<algorithm>:<hex>" manifest checksum
// against the configured algorithm and returns the bare digest.
func (ix *Indexer) manifestDigest(path, kind, artifact, value string) (string, error) {
	algorithm, digest, ok := splitManifestChecksum(value)
	if !ok {
		ix.recordManifestParseError(kind, "schema")
		return "", manifestError(path, kind,
			fmt.Sprintf("artifact %q has malformed checksum %q, expected \"<algorithm>:<hex>\"", artifact, value))
	}
	if algorithm != ix.algorithm {
		ix.recordManifestParseError(kind, "algorithm")
		return "", errors.Newf("manifest %s uses checksum algorithm %q, configuration expects %q", path, algorithm, ix.algorithm).
			Component("indexer").
			Category(errors.CategoryConfiguration).
			Context("manifest", path).
			Context("manifest_algorithm", algorithm).
			Context("configured_algorithm", ix.algorithm).
			Build()
	}
	return digest, nil
}

func (ix *Indexer) recordManifestParseError(kind, errorType string) {
	if ix.metrics != nil {
		ix.metrics.RecordManifestParseError(kind, errorType)
	}
}
