// Package engine implements the concurrent windowed-transform pipeline that
// turns a stereo recording into a surround mix.
//
// Every worker goroutine runs the same loop: pull one overlapping window
// from the shared window source, forward-transform it and estimate per-bin
// pan positions, feed the result into the out-of-order reassembly and
// temporal-averaging stage, then steer, inverse-transform and write any
// averaged windows that are ready. Windows complete in arbitrary order
// across workers; reassembly re-serializes them by sample index before the
// averaging and writing stages see them.
package engine

import (
	"errors"
	"fmt"

	"github.com/quadtone/upmix/internal/matrix"
)

// Synthesis scale numerator. The exact inverse-transform normalization is
// 1/window_size, but that renders the steered mix noticeably quiet once
// energy is spread across four or more channels; 2/window_size restores the
// perceived level. The headroom gain is applied on top of this.
const scaleNumerator = 2.0

// LFE crossover cutoffs in Hz. The gain curve is unity below LFEFullHz,
// tapers with a raised cosine up to LFEStartHz, and is zero above it.
const (
	LFEFullHz  = 20.0
	LFEStartHz = 40.0
)

// ErrParams indicates an invalid engine parameter set.
var ErrParams = errors.New("invalid upmix parameters")

// Source is the sample-accurate random-access input the window source reads
// from. Channel 0 is left, channel 1 is right.
type Source interface {
	ReadSample(index, channel int) (float64, error)
}

// Frame is one output sample set across all surround channels. Fields for
// channels absent from the run's layout are left at zero and ignored by the
// writer.
type Frame struct {
	FrontLeft  float64
	FrontRight float64
	Center     float64
	LFE        float64
	BackLeft   float64
	BackRight  float64
}

// FrameWriter is the sample-accurate random-access output sink. A frame's
// destination is purely a function of its absolute sample index, so frames
// may arrive in any order. Flush is called exactly once, after all workers
// have finished.
type FrameWriter interface {
	WriteFrame(index int, frame Frame) error
	Flush() error
}

// Params configures one upmix run. All fields are read-only once the
// workers start.
type Params struct {
	// WindowSize is the analysis window length in samples. Must be even and
	// transform-friendly; it is normally chosen to cover roughly 1/10 s.
	WindowSize int

	// SampleRate of the source material in Hz.
	SampleRate int

	// TotalSamples is the length of the source in sample pairs.
	TotalSamples int

	// Matrix is the decode family steering policy, shared read-only by all
	// workers.
	Matrix *matrix.Matrix

	// HasCenter and HasLFE select the output layout. Either one requires the
	// mono-sum spectrum to be carried through the pipeline.
	HasCenter bool
	HasLFE    bool

	// Loud disables the matrix's level compensation.
	Loud bool

	// LowFrequency is the lowest steered frequency in Hz; bins below it stay
	// in the front channels.
	LowFrequency float64

	// MinimumSteeredAmplitude is the floor below which a bin is treated as
	// unsteered, suppressing noise-floor steering artifacts.
	MinimumSteeredAmplitude float64

	// Gain is the linear output gain derived from the headroom setting.
	// Zero means unity.
	Gain float64

	// Workers is the pool size. Zero means one worker per available CPU.
	Workers int

	// Logger receives rate-limited progress updates. May be nil.
	Logger *StatusLogger
}

// Validate checks the parameter set against the engine's structural
// requirements.
func (p *Params) Validate() error {
	if p.WindowSize < 4 || p.WindowSize%2 != 0 {
		return fmt.Errorf("%w: window size must be even and at least 4, got %d", ErrParams, p.WindowSize)
	}
	if p.SampleRate < 1 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrParams, p.SampleRate)
	}
	if p.TotalSamples < p.WindowSize {
		return fmt.Errorf("%w: input of %d samples is shorter than one %d-sample analysis window",
			ErrParams, p.TotalSamples, p.WindowSize)
	}
	if p.Matrix == nil {
		return fmt.Errorf("%w: matrix policy is required", ErrParams)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: worker count must not be negative, got %d", ErrParams, p.Workers)
	}
	return nil
}

// frequencyPan is the estimated spatial position of one frequency bin at
// one moment in time.
type frequencyPan struct {
	// amplitude is the combined left+right magnitude of the bin.
	amplitude float64
	// leftToRight ranges over [-1, 1]: -1 is hard left, 1 is hard right.
	leftToRight float64
	// backToFront ranges over [0, 1]: 0 is front, 1 is back.
	backToFront float64
}

// transformedWindow carries one window's forward transforms and per-bin pan
// estimates through the pipeline. It is identified by the absolute index of
// the last input sample the window covers; because windows hop by one
// sample, those indices are consecutive, which is what lets reassembly
// re-serialize out-of-order completions.
//
// Ownership: produced by the analysis stage, held by the reassembly queue
// until its averaging neighborhood is complete, and finally consumed by the
// steering/resynthesis stage. Spectra are shared, not copied, between the
// reassembly queue and the averaged output; only the averaging stage's
// midpoint handoff reads them, so the sharing is safe.
type transformedWindow struct {
	lastSampleCtr int

	// Half spectra (bins 0..windowSize/2) of the left, right and, when a
	// center or LFE channel is produced, mono-sum signals.
	left  []complex128
	right []complex128
	mono  []complex128

	// pans holds one entry per steerable bin: index k-1 for bin k in
	// 1..windowSize/2-1. DC and Nyquist are never steered.
	pans []frequencyPan
}

// centerSampleCtr returns the absolute index of the sample the window is
// centered on.
func (tw *transformedWindow) centerSampleCtr(midpoint int) int {
	return tw.lastSampleCtr - (midpoint - 1)
}
