package upmix_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadtone/upmix"
	"github.com/quadtone/upmix/internal/wavio"
)

// writeWAV encodes 16-bit PCM channels into a WAV file for test input.
func writeWAV(t *testing.T, path string, sampleRate int, channels ...[]float64) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, len(channels), 1)

	total := len(channels[0])
	data := make([]int, 0, total*len(channels))
	for i := range total {
		for _, ch := range channels {
			data = append(data, int(math.Round(ch[i]*32767)))
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: len(channels), SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           data,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func sine(n int, frequency, amplitude float64, sampleRate int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
	}
	return s
}

func validTestConfig(dir string) upmix.Config {
	cfg := upmix.DefaultConfig()
	cfg.SourcePath = filepath.Join(dir, "in.wav")
	cfg.TargetPath = filepath.Join(dir, "out.wav")
	cfg.Layout = upmix.FiveOne
	cfg.Matrix = upmix.MatrixQS
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*upmix.Config)
		wantErr bool
	}{
		{"valid", func(c *upmix.Config) {}, false},
		{"missing source", func(c *upmix.Config) { c.SourcePath = "" }, true},
		{"missing target", func(c *upmix.Config) { c.TargetPath = "" }, true},
		{"unknown layout", func(c *upmix.Config) { c.Layout = upmix.ChannelLayout(7) }, true},
		{"unknown matrix", func(c *upmix.Config) { c.Matrix = upmix.MatrixFormat(42) }, true},
		{"low frequency below 1 Hz", func(c *upmix.Config) { c.LowFrequency = 0.5 }, true},
		{"low frequency starves LFE", func(c *upmix.Config) { c.LowFrequency = 100 }, true},
		{"low frequency fine without LFE", func(c *upmix.Config) {
			c.Layout = upmix.FiveChannel
			c.LowFrequency = 100
		}, false},
		{"loud without center", func(c *upmix.Config) {
			c.Layout = upmix.FourChannel
			c.Loud = true
		}, true},
		{"loud with center", func(c *upmix.Config) { c.Loud = true }, false},
		{"negative minimum amplitude", func(c *upmix.Config) { c.MinimumSteeredAmplitude = -0.1 }, true},
		{"negative headroom", func(c *upmix.Config) { c.HeadroomDB = -3 }, true},
		{"unfriendly fft size", func(c *upmix.Config) { c.FFTSize = 34 }, true},
		{"odd fft size", func(c *upmix.Config) { c.FFTSize = 243 }, true},
		{"friendly fft size", func(c *upmix.Config) { c.FFTSize = 4410 }, false},
		{"negative threads", func(c *upmix.Config) { c.Threads = -2 }, true},
		{"negative file cap", func(c *upmix.Config) { c.MaxSamplesPerFile = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig(t.TempDir())
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, upmix.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseChannelLayout(t *testing.T) {
	layout, err := upmix.ParseChannelLayout("5.1")
	require.NoError(t, err)
	assert.Equal(t, upmix.FiveOne, layout)
	assert.True(t, layout.HasCenter())
	assert.True(t, layout.HasLFE())
	assert.Equal(t, 6, layout.Channels())

	layout, err = upmix.ParseChannelLayout("4")
	require.NoError(t, err)
	assert.False(t, layout.HasCenter())
	assert.Equal(t, 4, layout.Channels())

	_, err = upmix.ParseChannelLayout("7.1")
	assert.ErrorIs(t, err, upmix.ErrInvalidConfig)
}

func TestParseMatrixFormat(t *testing.T) {
	format, err := upmix.ParseMatrixFormat("qs")
	require.NoError(t, err)
	assert.Equal(t, upmix.MatrixQS, format)

	// Regular Matrix is the QS scheme under its other trade name.
	format, err = upmix.ParseMatrixFormat("rm")
	require.NoError(t, err)
	assert.Equal(t, upmix.MatrixQS, format)

	format, err = upmix.ParseMatrixFormat("SQ")
	require.NoError(t, err)
	assert.Equal(t, upmix.MatrixSQ, format)

	_, err = upmix.ParseMatrixFormat("quad")
	assert.ErrorIs(t, err, upmix.ErrInvalidConfig)
}

func TestUpmixEndToEnd(t *testing.T) {
	const sampleRate = 8000
	const total = 1600

	dir := t.TempDir()
	signal := sine(total, 440, 0.4, sampleRate)
	cfg := validTestConfig(dir)
	writeWAV(t, cfg.SourcePath, sampleRate, signal, signal)

	cfg.FFTSize = 64
	cfg.Threads = 2

	stats, err := upmix.Upmix(cfg)
	require.NoError(t, err)

	assert.Equal(t, total, stats.SamplesWritten)
	assert.Equal(t, 1, stats.OutputFiles)
	assert.Equal(t, 6, stats.Channels)
	assert.Equal(t, sampleRate, stats.SampleRate)
	assert.Equal(t, 64, stats.WindowSize)

	out, err := wavio.OpenReader(cfg.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, 6, out.Channels())
	assert.Equal(t, sampleRate, out.SampleRate())
	assert.Equal(t, total, out.Len())
}

func TestUpmixSplitsLongOutput(t *testing.T) {
	const sampleRate = 8000
	const total = 1600

	dir := t.TempDir()
	signal := sine(total, 440, 0.4, sampleRate)
	cfg := validTestConfig(dir)
	writeWAV(t, cfg.SourcePath, sampleRate, signal, signal)

	cfg.FFTSize = 64
	cfg.MaxSamplesPerFile = 600

	stats, err := upmix.Upmix(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.OutputFiles)

	wantSamples := []int{600, 600, 400}
	paths := []string{
		cfg.TargetPath,
		filepath.Join(dir, "out.1.wav"),
		filepath.Join(dir, "out.2.wav"),
	}
	for i, path := range paths {
		out, err := wavio.OpenReader(path)
		require.NoError(t, err, "file %d", i)
		assert.Equal(t, wantSamples[i], out.Len(), "file %d", i)
	}
}

func TestUpmixRejectsMonoSource(t *testing.T) {
	dir := t.TempDir()
	cfg := validTestConfig(dir)
	writeWAV(t, cfg.SourcePath, 8000, sine(1600, 440, 0.4, 8000))

	cfg.FFTSize = 64
	_, err := upmix.Upmix(cfg)
	assert.ErrorIs(t, err, upmix.ErrInvalidConfig)
}

func TestUpmixRejectsShortSource(t *testing.T) {
	dir := t.TempDir()
	cfg := validTestConfig(dir)
	signal := sine(100, 440, 0.4, 8000)
	writeWAV(t, cfg.SourcePath, 8000, signal, signal)

	cfg.FFTSize = 256
	_, err := upmix.Upmix(cfg)
	assert.ErrorIs(t, err, upmix.ErrInvalidConfig)
}
