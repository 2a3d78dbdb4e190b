package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

func TestMatchGlob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"**/*.wav", "call.wav", true},
		{"**/*.wav", "bird12/d7/call.wav", true},
		{"**/*.wav", "bird12/d7/call.txt", false},
		{"*.wav", "call.wav", true},
		{"*.wav", "bird12/call.wav", false},
		{"**/*.segments.json", "sess/dawn.segments.json", true},
		{"**/*.segments.json", "sess/dawn.embeddings.json", false},
		{"**/syll_*.npy", "a/b/c/syll_0001.npy", true},
	}

	for _, tt := range tests {
		got, err := matchGlob(tt.pattern, tt.rel)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "pattern %q against %q", tt.pattern, tt.rel)
	}
}

func TestMatchGlobBadPattern(t *testing.T) {
	t.Parallel()

	_, err := matchGlob("[", "anything")
	require.Error(t, err)
}

func TestDiscoverFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, rel := range []string{
		"sub/b.wav",
		"a.wav",
		"sub/notes.txt",
		"sub/.staging/c.wav",
		".cache/d.wav",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}

	files, err := discoverFiles(root, "**/*.wav")
	require.NoError(t, err)

	rels := make([]string, len(files))
	for i, f := range files {
		rels[i] = f.Rel
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(f.Rel)), f.Abs)
	}
	assert.Equal(t, []string{"a.wav", "sub/b.wav"}, rels,
		"results are sorted and hidden directories are skipped")
}

func TestDiscoverFilesEmptyTree(t *testing.T) {
	t.Parallel()

	files, err := discoverFiles(t.TempDir(), "**/*.wav")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverFilesMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := discoverFiles(filepath.Join(t.TempDir(), "nope"), "**/*.wav")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestDiscoverFilesRootIsAFile(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "actually-a-file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	_, err := discoverFiles(root, "**/*.wav")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "not a directory")
}

func TestDiscoverFilesBadPattern(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.wav"), []byte("x"), 0o644))

	_, err := discoverFiles(root, "[")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "invalid glob pattern")
}

func TestNormalizeArtifactPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"relative stays relative", "bird12/syll_0001.npy", "bird12/syll_0001.npy"},
		{"dot segments are cleaned", "./bird12/../bird12/syll_0001.npy", "bird12/syll_0001.npy"},
		{"absolute under root is relativized", filepath.ToSlash(filepath.Join(root, "bird12/syll_0001.npy")), "bird12/syll_0001.npy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeArtifactPath(root, tt.ref))
		})
	}
}

func TestResolveArtifactPathRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	abs := filepath.Join(root, "bird12", "syll_0001.npy")

	rel := normalizeArtifactPath(root, filepath.ToSlash(abs))
	assert.Equal(t, "bird12/syll_0001.npy", rel)
	assert.Equal(t, abs, resolveArtifactPath(root, rel))
}
