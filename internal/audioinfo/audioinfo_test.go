package audioinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes sampleCount silent mono samples and returns the path.
func writeTestWAV(t *testing.T, sampleRate, bitDepth, sampleCount int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "probe.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Data:   make([]int, sampleCount),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	return path
}

func TestReadInfoWAV(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 44100, 16, 4410)

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)

	// The sample count is derived from file size, so the header adds a
	// few phantom samples on top of the real 4410.
	assert.GreaterOrEqual(t, info.TotalSamples, 4410)
	assert.Less(t, info.TotalSamples, 4410+128)

	assert.InDelta(t, 0.1, info.DurationSeconds(), 0.01)
}

func TestReadInfoRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := ReadInfo(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestReadInfoMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadInfo(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestReadInfoRejectsGarbageWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFnope"), 0o644))

	_, err := ReadInfo(path)
	require.Error(t, err)
}

func TestReadInfoRejectsGarbageFLAC(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.flac")
	require.NoError(t, os.WriteFile(path, []byte("not a flac stream"), 0o644))

	_, err := ReadInfo(path)
	require.Error(t, err)
}

func TestDurationSecondsZeroRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, AudioInfo{TotalSamples: 1000}.DurationSeconds())
}
