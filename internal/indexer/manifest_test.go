package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/errors"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseSegmentsManifest(t *testing.T) {
	t.Parallel()

	p := writeManifest(t, "dawn.segments.json", `{
		"version": 1,
		"recording": "bird7/dawn.wav",
		"generated_at": "2024-07-14T09:21:00Z",
		"segments": [
			{
				"spectrogram": "bird7/dawn/syll_0001.npy",
				"start": 1.25,
				"end": 1.5,
				"checksum": "sha256:ABCDEF0123",
				"bounds": {"f_min": 2000, "f_max": 8000},
				"labels": [{"type": "label", "key": "cluster", "value": "7"}]
			},
			{
				"spectrogram": "bird7/dawn/syll_0002.npy",
				"start": 2.0,
				"end": 2.4,
				"checksum": "sha256:aa11bb22"
			}
		]
	}`)

	ix := testIndexer(conf.ChecksumSHA256)
	m, err := ix.parseSegmentsManifest(p)
	require.NoError(t, err)

	assert.Equal(t, p, m.Path)
	assert.Equal(t, "bird7/dawn.wav", m.Recording)
	require.Len(t, m.Segments, 2)

	first := m.Segments[0]
	assert.Equal(t, "abcdef0123", first.Checksum, "checksums are normalized to bare lowercase hex")
	assert.JSONEq(t, `{"f_min": 2000, "f_max": 8000}`, string(first.Bounds))
	require.Len(t, first.Labels, 1)
	assert.Equal(t, segmentLabel{Type: "label", Key: "cluster", Value: "7"}, first.Labels[0])

	assert.Empty(t, m.Segments[1].Labels)
	assert.Empty(t, m.Segments[1].Bounds)
}

func TestParseSegmentsManifestRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unsupported version",
			content: `{"version": 2, "recording": "a.wav", "segments": []}`,
			want:    "unsupported manifest version 2",
		},
		{
			name:    "missing recording",
			content: `{"version": 1, "segments": []}`,
			want:    "missing recording path",
		},
		{
			name: "segment without spectrogram",
			content: `{"version": 1, "recording": "a.wav", "segments": [
				{"start": 1, "end": 2, "checksum": "sha256:aa"}]}`,
			want: "missing its spectrogram path",
		},
		{
			name: "end before start",
			content: `{"version": 1, "recording": "a.wav", "segments": [
				{"spectrogram": "s.npy", "start": 2.5, "end": 2.5, "checksum": "sha256:aa"}]}`,
			want: "has end 2.500000 <= start 2.500000",
		},
		{
			name: "label without key",
			content: `{"version": 1, "recording": "a.wav", "segments": [
				{"spectrogram": "s.npy", "start": 1, "end": 2, "checksum": "sha256:aa",
				 "labels": [{"type": "label", "value": "7"}]}]}`,
			want: "missing type or key",
		},
		{
			name: "checksum without algorithm prefix",
			content: `{"version": 1, "recording": "a.wav", "segments": [
				{"spectrogram": "s.npy", "start": 1, "end": 2, "checksum": "abcd"}]}`,
			want: "malformed checksum",
		},
		{
			name:    "not json",
			content: `{nope`,
			want:    "invalid segments manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ix := testIndexer(conf.ChecksumSHA256)
			_, err := ix.parseSegmentsManifest(writeManifest(t, "bad.segments.json", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestParseSegmentsManifestAlgorithmMismatch(t *testing.T) {
	t.Parallel()

	p := writeManifest(t, "dawn.segments.json", `{
		"version": 1,
		"recording": "a.wav",
		"segments": [{"spectrogram": "s.npy", "start": 1, "end": 2, "checksum": "sha512:aa"}]
	}`)

	ix := testIndexer(conf.ChecksumSHA256)
	_, err := ix.parseSegmentsManifest(p)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration),
		"an algorithm mismatch is a configuration problem, not a data problem")
	assert.Contains(t, err.Error(), `uses checksum algorithm "sha512"`)
}

func TestParseSegmentsManifestMissingFile(t *testing.T) {
	t.Parallel()

	ix := testIndexer(conf.ChecksumSHA256)
	_, err := ix.parseSegmentsManifest(filepath.Join(t.TempDir(), "absent.segments.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestParseEmbeddingsManifest(t *testing.T) {
	t.Parallel()

	p := writeManifest(t, "dawn.embeddings.json", `{
		"version": 1,
		"model_version": "vae-2024.1",
		"generated_at": "2024-07-15T02:00:00Z",
		"embeddings": [
			{
				"spectrogram": "bird7/dawn/syll_0001.npy",
				"vector": "bird7/dawn/emb_0001.npy",
				"dimensions": 32,
				"checksum": "sha256:FF00",
				"model_metadata": {"checkpoint": "ckpt-91"}
			}
		]
	}`)

	ix := testIndexer(conf.ChecksumSHA256)
	m, err := ix.parseEmbeddingsManifest(p)
	require.NoError(t, err)

	assert.Equal(t, "vae-2024.1", m.ModelVersion)
	require.Len(t, m.Embeddings, 1)
	assert.Equal(t, "ff00", m.Embeddings[0].Checksum)
	assert.Equal(t, 32, m.Embeddings[0].Dimensions)
	assert.JSONEq(t, `{"checkpoint": "ckpt-91"}`, string(m.Embeddings[0].ModelMetadata))
}

func TestParseEmbeddingsManifestRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing model version",
			content: `{"version": 1, "embeddings": []}`,
			want:    "missing model_version",
		},
		{
			name: "embedding without vector",
			content: `{"version": 1, "model_version": "v1", "embeddings": [
				{"spectrogram": "s.npy", "dimensions": 32, "checksum": "sha256:aa"}]}`,
			want: "missing its vector path",
		},
		{
			name: "embedding without spectrogram",
			content: `{"version": 1, "model_version": "v1", "embeddings": [
				{"vector": "e.npy", "dimensions": 32, "checksum": "sha256:aa"}]}`,
			want: "missing its spectrogram path",
		},
		{
			name: "non-positive dimensions",
			content: `{"version": 1, "model_version": "v1", "embeddings": [
				{"spectrogram": "s.npy", "vector": "e.npy", "dimensions": 0, "checksum": "sha256:aa"}]}`,
			want: "non-positive dimensions 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ix := testIndexer(conf.ChecksumSHA256)
			_, err := ix.parseEmbeddingsManifest(writeManifest(t, "bad.embeddings.json", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
