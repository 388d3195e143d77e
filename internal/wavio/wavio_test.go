package wavio

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadtone/upmix/internal/engine"
)

// quantization tolerances for PCM round trips.
const (
	tolerance16 = 2.0 / maxInt16
	tolerance24 = 2.0 / maxInt24
)

// testFrame builds a recognizable frame for sample index i.
func testFrame(i int) engine.Frame {
	base := float64(i%200)/1000 - 0.1
	return engine.Frame{
		FrontLeft:  base,
		FrontRight: base + 0.001,
		Center:     base + 0.002,
		LFE:        base + 0.003,
		BackLeft:   -base,
		BackRight:  -base - 0.001,
	}
}

func TestWriterSplitsAtSampleCap(t *testing.T) {
	const sampleCap = 100
	const total = 250

	dir := t.TempDir()
	target := filepath.Join(dir, "out.wav")

	w, err := NewWriter(target, 44100, 16, false, false, sampleCap)
	require.NoError(t, err)

	// Frames arrive out of order in production; shuffle to match.
	indices := rand.Perm(total)
	for _, i := range indices {
		require.NoError(t, w.WriteFrame(i, testFrame(i)))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 3, w.FileCount())

	// 2.5 caps of output land in three files: two full, one half.
	wantPaths := []string{
		target,
		filepath.Join(dir, "out.1.wav"),
		filepath.Join(dir, "out.2.wav"),
	}
	wantSamples := []int{sampleCap, sampleCap, total - 2*sampleCap}
	blockAlign := 4 * 2

	for fileCtr, path := range wantPaths {
		info, err := os.Stat(path)
		require.NoError(t, err, "file %d", fileCtr)
		assert.Equal(t, int64(wavHeaderSize+wantSamples[fileCtr]*blockAlign), info.Size(), "file %d", fileCtr)

		r, err := OpenReader(path)
		require.NoError(t, err, "file %d", fileCtr)
		assert.Equal(t, 4, r.Channels())
		assert.Equal(t, 44100, r.SampleRate())
		assert.Equal(t, 16, r.BitDepth())
		require.Equal(t, wantSamples[fileCtr], r.Len(), "file %d", fileCtr)

		for local := range r.Len() {
			want := testFrame(fileCtr*sampleCap + local)
			got, err := r.ReadSample(local, 0)
			require.NoError(t, err)
			assert.InDelta(t, want.FrontLeft, got, tolerance16,
				"file %d sample %d front left", fileCtr, local)

			got, err = r.ReadSample(local, 3)
			require.NoError(t, err)
			assert.InDelta(t, want.BackRight, got, tolerance16,
				"file %d sample %d back right", fileCtr, local)
		}
	}
}

func TestWriterSixChannelRoundTrip(t *testing.T) {
	const total = 64

	target := filepath.Join(t.TempDir(), "surround.wav")
	w, err := NewWriter(target, 48000, 24, true, true, 0)
	require.NoError(t, err)

	for i := range total {
		require.NoError(t, w.WriteFrame(i, testFrame(i)))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 1, w.FileCount())

	r, err := OpenReader(target)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Channels())
	assert.Equal(t, 24, r.BitDepth())
	require.Equal(t, total, r.Len())

	// Channel order on disk: FL FR FC LFE BL BR.
	for i := range total {
		frame := testFrame(i)
		want := []float64{frame.FrontLeft, frame.FrontRight, frame.Center,
			frame.LFE, frame.BackLeft, frame.BackRight}
		for ch, wantValue := range want {
			got, err := r.ReadSample(i, ch)
			require.NoError(t, err)
			assert.InDelta(t, wantValue, got, tolerance24, "sample %d channel %d", i, ch)
		}
	}
}

func TestWriterClampsOverrange(t *testing.T) {
	target := filepath.Join(t.TempDir(), "clip.wav")
	w, err := NewWriter(target, 44100, 16, false, false, 0)
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(0, engine.Frame{FrontLeft: 2.5, FrontRight: -3}))
	require.NoError(t, w.Flush())

	r, err := OpenReader(target)
	require.NoError(t, err)
	got, err := r.ReadSample(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, tolerance16)
	got, err = r.ReadSample(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, tolerance16)
}

func TestWriterRejectsUnsupportedBitDepth(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "x.wav"), 44100, 8, false, false, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriterRejectsWritesAfterFlush(t *testing.T) {
	target := filepath.Join(t.TempDir(), "done.wav")
	w, err := NewWriter(target, 44100, 16, false, false, 0)
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(0, engine.Frame{}))
	require.NoError(t, w.Flush())

	assert.Error(t, w.WriteFrame(1, engine.Frame{}))
	assert.NoError(t, w.Flush(), "repeated flush is a no-op")
}

func TestOpenReaderRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not a wav file"), 0o644))

	_, err := OpenReader(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpenReaderMissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
