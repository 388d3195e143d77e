package upmix

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quadtone/upmix/internal/engine"
	"github.com/quadtone/upmix/internal/keepawake"
	"github.com/quadtone/upmix/internal/mathutil"
	"github.com/quadtone/upmix/internal/matrix"
	"github.com/quadtone/upmix/internal/wavio"
)

// ErrInvalidConfig indicates a configuration that can be rejected before
// any file is touched.
var ErrInvalidConfig = errors.New("invalid upmix configuration")

// ChannelLayout selects the surround speaker arrangement to produce.
type ChannelLayout int

const (
	// FourChannel produces front left/right and back left/right.
	FourChannel ChannelLayout = iota

	// FiveChannel adds a front center channel.
	FiveChannel

	// FiveOne adds a front center and a low-frequency-effects channel.
	FiveOne
)

// HasCenter reports whether the layout includes a front center channel.
func (l ChannelLayout) HasCenter() bool {
	return l == FiveChannel || l == FiveOne
}

// HasLFE reports whether the layout includes a low-frequency-effects
// channel.
func (l ChannelLayout) HasLFE() bool {
	return l == FiveOne
}

// Channels returns the layout's output channel count.
func (l ChannelLayout) Channels() int {
	switch l {
	case FiveChannel:
		return 5
	case FiveOne:
		return 6
	default:
		return 4
	}
}

// String returns the CLI spelling of the layout.
func (l ChannelLayout) String() string {
	switch l {
	case FourChannel:
		return "4"
	case FiveChannel:
		return "5"
	case FiveOne:
		return "5.1"
	default:
		return fmt.Sprintf("ChannelLayout(%d)", int(l))
	}
}

// ParseChannelLayout converts a CLI spelling into a layout.
func ParseChannelLayout(s string) (ChannelLayout, error) {
	switch s {
	case "4":
		return FourChannel, nil
	case "5":
		return FiveChannel, nil
	case "5.1":
		return FiveOne, nil
	default:
		return 0, fmt.Errorf("%w: unknown channel layout %q (want 4, 5 or 5.1)", ErrInvalidConfig, s)
	}
}

// MatrixFormat selects the decode family used for steering.
type MatrixFormat int

const (
	// MatrixDefault steers without phase rotation or level compensation.
	MatrixDefault MatrixFormat = iota

	// MatrixQS decodes Sansui QS (Regular Matrix) material.
	MatrixQS

	// MatrixHorseshoe decodes the wider "horseshoe" QS variant.
	MatrixHorseshoe

	// MatrixDolbyStereo decodes Dolby Stereo / Pro Logic style material.
	MatrixDolbyStereo

	// MatrixSQ decodes CBS SQ material.
	MatrixSQ

	// MatrixSQExperimental is SQ without level compensation.
	MatrixSQExperimental
)

// String returns the CLI spelling of the format.
func (f MatrixFormat) String() string {
	switch f {
	case MatrixDefault:
		return "default"
	case MatrixQS:
		return "qs"
	case MatrixHorseshoe:
		return "horseshoe"
	case MatrixDolbyStereo:
		return "dolby"
	case MatrixSQ:
		return "sq"
	case MatrixSQExperimental:
		return "sqexperimental"
	default:
		return fmt.Sprintf("MatrixFormat(%d)", int(f))
	}
}

// ParseMatrixFormat converts a CLI spelling into a format. "rm" (Regular
// Matrix) is accepted as an alias for QS.
func ParseMatrixFormat(s string) (MatrixFormat, error) {
	switch strings.ToLower(s) {
	case "default":
		return MatrixDefault, nil
	case "qs", "rm":
		return MatrixQS, nil
	case "horseshoe":
		return MatrixHorseshoe, nil
	case "dolby":
		return MatrixDolbyStereo, nil
	case "sq":
		return MatrixSQ, nil
	case "sqexperimental":
		return MatrixSQExperimental, nil
	default:
		return 0, fmt.Errorf("%w: unknown matrix format %q", ErrInvalidConfig, s)
	}
}

func (f MatrixFormat) policyFormat() (matrix.Format, error) {
	switch f {
	case MatrixDefault:
		return matrix.Default, nil
	case MatrixQS:
		return matrix.QS, nil
	case MatrixHorseshoe:
		return matrix.Horseshoe, nil
	case MatrixDolbyStereo:
		return matrix.DolbyStereo, nil
	case MatrixSQ:
		return matrix.SQ, nil
	case MatrixSQExperimental:
		return matrix.SQExperimental, nil
	default:
		return 0, fmt.Errorf("%w: unknown matrix format %d", ErrInvalidConfig, int(f))
	}
}

// Config holds one upmix run's settings.
type Config struct {
	// SourcePath is the stereo WAV file to read.
	SourcePath string

	// TargetPath is the surround WAV file to write. Outputs exceeding the
	// per-file sample cap continue in numbered sibling files.
	TargetPath string

	// Layout selects the output speaker arrangement.
	Layout ChannelLayout

	// Matrix selects the decode family.
	Matrix MatrixFormat

	// LowFrequency is the lowest steered frequency in Hz. Bins below it
	// pass through to the front channels unsteered. Must be at least 1.
	LowFrequency float64

	// MinimumSteeredAmplitude is the bin amplitude floor below which no
	// position is estimated, suppressing noise-floor steering artifacts.
	MinimumSteeredAmplitude float64

	// Loud skips the decode family's level compensation. Only meaningful
	// for layouts with a center channel.
	Loud bool

	// HeadroomDB is the decibel margin subtracted from full scale before
	// samples are written.
	HeadroomDB float64

	// FFTSize overrides the analysis window size. Zero selects the
	// smallest transform-friendly size covering a tenth of a second.
	FFTSize int

	// Threads overrides the worker count. Zero means one per CPU.
	Threads int

	// MaxSamplesPerFile caps how many sample sets go into one output file.
	// Zero selects the largest cap the WAV size field allows.
	MaxSamplesPerFile int

	// KeepAwake requests a system sleep inhibition for the duration of the
	// run, where the platform supports one.
	KeepAwake bool

	// Progress, when non-nil, receives rate-limited progress lines.
	Progress io.Writer
}

// DefaultConfig returns a Config with the standard processing defaults.
// Paths, layout and matrix still need to be filled in.
func DefaultConfig() Config {
	return Config{
		LowFrequency:            DefaultLowFrequency,
		MinimumSteeredAmplitude: DefaultMinimumSteeredAmplitude,
	}
}

// Validate checks the configuration without touching any file.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("%w: source path is required", ErrInvalidConfig)
	}
	if c.TargetPath == "" {
		return fmt.Errorf("%w: target path is required", ErrInvalidConfig)
	}
	if c.Layout < FourChannel || c.Layout > FiveOne {
		return fmt.Errorf("%w: unknown channel layout %d", ErrInvalidConfig, int(c.Layout))
	}
	if _, err := c.Matrix.policyFormat(); err != nil {
		return err
	}
	if c.LowFrequency < 1 {
		return fmt.Errorf("%w: lowest steered frequency must be at least 1 Hz, got %g",
			ErrInvalidConfig, c.LowFrequency)
	}
	if c.Layout.HasLFE() && c.LowFrequency > engine.LFEStartHz {
		return fmt.Errorf("%w: lowest steered frequency %g Hz leaves nothing for the LFE channel (cutoff %g Hz)",
			ErrInvalidConfig, c.LowFrequency, engine.LFEStartHz)
	}
	if c.Loud && !c.Layout.HasCenter() {
		return fmt.Errorf("%w: loudness compensation requires a center channel layout", ErrInvalidConfig)
	}
	if c.MinimumSteeredAmplitude < 0 {
		return fmt.Errorf("%w: minimum steered amplitude must not be negative, got %g",
			ErrInvalidConfig, c.MinimumSteeredAmplitude)
	}
	if c.HeadroomDB < 0 {
		return fmt.Errorf("%w: headroom must not be negative, got %g dB", ErrInvalidConfig, c.HeadroomDB)
	}
	if c.FFTSize != 0 {
		if c.FFTSize < MinWindowSize || c.FFTSize%2 != 0 || !mathutil.IsTransformFriendly(c.FFTSize) {
			return fmt.Errorf("%w: FFT size %d is not an even transform-friendly size of at least %d",
				ErrInvalidConfig, c.FFTSize, MinWindowSize)
		}
	}
	if c.Threads < 0 {
		return fmt.Errorf("%w: thread count must not be negative, got %d", ErrInvalidConfig, c.Threads)
	}
	if c.MaxSamplesPerFile < 0 {
		return fmt.Errorf("%w: per-file sample cap must not be negative, got %d",
			ErrInvalidConfig, c.MaxSamplesPerFile)
	}
	return nil
}

// Stats summarizes a completed upmix run.
type Stats struct {
	// SamplesWritten is the number of output sample sets.
	SamplesWritten int

	// OutputFiles is how many WAV files the output was split across.
	OutputFiles int

	// WindowSize is the analysis window size that was used.
	WindowSize int

	// SampleRate is the output sample rate in Hz.
	SampleRate int

	// Channels is the output channel count.
	Channels int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Upmix reads the stereo source, steers it into the configured surround
// layout and writes the result. It blocks until the run completes or
// fails; on failure the output files are left unfinalized.
func Upmix(cfg Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.KeepAwake {
		release := keepawake.Acquire()
		defer release()
	}

	started := time.Now()

	reader, err := wavio.OpenReader(cfg.SourcePath)
	if err != nil {
		return nil, err
	}
	if reader.Channels() != stereoChannels {
		return nil, fmt.Errorf("%w: source must be stereo, got %d channels",
			ErrInvalidConfig, reader.Channels())
	}

	windowSize := cfg.FFTSize
	if windowSize == 0 {
		windowSize, err = mathutil.IdealWindowSize(reader.SampleRate() / windowFractionOfSecond)
		if err != nil {
			return nil, err
		}
	}
	if reader.Len() < windowSize {
		return nil, fmt.Errorf("%w: source has %d samples, shorter than one %d-sample analysis window",
			ErrInvalidConfig, reader.Len(), windowSize)
	}

	policyFormat, err := cfg.Matrix.policyFormat()
	if err != nil {
		return nil, err
	}
	policy, err := matrix.New(policyFormat)
	if err != nil {
		return nil, err
	}

	writer, err := wavio.NewWriter(cfg.TargetPath, reader.SampleRate(), reader.BitDepth(),
		cfg.Layout.HasCenter(), cfg.Layout.HasLFE(), cfg.MaxSamplesPerFile)
	if err != nil {
		return nil, err
	}

	var logger *engine.StatusLogger
	if cfg.Progress != nil {
		logger = engine.NewStatusLogger(cfg.Progress, reader.Len())
	}

	params := engine.Params{
		WindowSize:              windowSize,
		SampleRate:              reader.SampleRate(),
		TotalSamples:            reader.Len(),
		Matrix:                  policy,
		HasCenter:               cfg.Layout.HasCenter(),
		HasLFE:                  cfg.Layout.HasLFE(),
		Loud:                    cfg.Loud,
		LowFrequency:            cfg.LowFrequency,
		MinimumSteeredAmplitude: cfg.MinimumSteeredAmplitude,
		Gain:                    mathutil.DBToAmplitude(-cfg.HeadroomDB),
		Workers:                 cfg.Threads,
		Logger:                  logger,
	}

	up, err := engine.New(params, reader, writer)
	if err != nil {
		return nil, err
	}
	if err := up.Run(); err != nil {
		return nil, err
	}

	return &Stats{
		SamplesWritten: up.SamplesWritten(),
		OutputFiles:    writer.FileCount(),
		WindowSize:     windowSize,
		SampleRate:     reader.SampleRate(),
		Channels:       writer.Channels(),
		Elapsed:        time.Since(started),
	}, nil
}
