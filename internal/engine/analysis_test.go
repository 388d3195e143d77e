package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/quadtone/upmix/internal/testutil"
)

// significantAmplitude selects bins loud enough to carry a meaningful pan
// estimate in these tests.
const significantAmplitude = 0.1

func analysisUpmixer(t *testing.T, left, right []float64) *Upmixer {
	t.Helper()
	const windowSize = 32
	params := defaultTestParams(t, windowSize, len(left))
	u, err := New(params, &memSource{left: left, right: right}, newMemWriter())
	require.NoError(t, err)
	return u
}

func TestPanCenteredSignal(t *testing.T) {
	signal := testutil.Sine(64, 1000, 0.5, 8000)
	u := analysisUpmixer(t, signal, signal)

	tw, ok, err := u.transformAndMeasurePans(fourier.NewFFT(u.windowSize))
	require.NoError(t, err)
	require.True(t, ok)

	// Identical channels: every steered bin sits dead center and fully in
	// front, exactly.
	for i, pan := range tw.pans {
		if pan.amplitude < significantAmplitude {
			continue
		}
		assert.Zero(t, pan.leftToRight, "bin %d", i+1)
		assert.Zero(t, pan.backToFront, "bin %d", i+1)
	}
}

func TestPanHardLeftSignal(t *testing.T) {
	signal := testutil.Sine(64, 1000, 0.5, 8000)
	silence := make([]float64, len(signal))
	u := analysisUpmixer(t, signal, silence)

	tw, ok, err := u.transformAndMeasurePans(fourier.NewFFT(u.windowSize))
	require.NoError(t, err)
	require.True(t, ok)

	for i, pan := range tw.pans {
		if pan.amplitude < significantAmplitude {
			continue
		}
		assert.InDelta(t, -1, pan.leftToRight, testutil.DefaultTolerance, "bin %d", i+1)
	}
}

func TestPanOutOfPhaseSignal(t *testing.T) {
	left := testutil.Sine(64, 1000, 0.5, 8000)
	right := make([]float64, len(left))
	for i, v := range left {
		right[i] = -v
	}
	u := analysisUpmixer(t, left, right)

	tw, ok, err := u.transformAndMeasurePans(fourier.NewFFT(u.windowSize))
	require.NoError(t, err)
	require.True(t, ok)

	// Inverted polarity is a phase difference of π: fully to the back.
	for i, pan := range tw.pans {
		if pan.amplitude < significantAmplitude {
			continue
		}
		assert.InDelta(t, 1, pan.backToFront, testutil.DefaultTolerance, "bin %d", i+1)
		assert.InDelta(t, 0, pan.leftToRight, testutil.DefaultTolerance, "bin %d", i+1)
	}
}

func TestPanQuietBinsStayInFront(t *testing.T) {
	signal := testutil.Sine(64, 1000, 1e-4, 8000)
	params := defaultTestParams(t, 32, len(signal))
	params.MinimumSteeredAmplitude = 0.01
	u, err := New(params, &memSource{left: signal, right: signal}, newMemWriter())
	require.NoError(t, err)

	tw, ok, err := u.transformAndMeasurePans(fourier.NewFFT(u.windowSize))
	require.NoError(t, err)
	require.True(t, ok)

	for i, pan := range tw.pans {
		assert.Zero(t, pan.backToFront, "bin %d", i+1)
		assert.Zero(t, pan.leftToRight, "bin %d", i+1)
	}
}

func TestPanLowFrequencyBinsStayInFront(t *testing.T) {
	left := testutil.Sine(64, 500, 0.5, 8000)
	right := make([]float64, len(left))
	for i, v := range left {
		right[i] = -v
	}

	params := defaultTestParams(t, 32, len(left))
	// Everything below Nyquist is "low" here, so nothing may steer even
	// though the channels are fully out of phase.
	params.LowFrequency = 4000
	u, err := New(params, &memSource{left: left, right: right}, newMemWriter())
	require.NoError(t, err)

	tw, ok, err := u.transformAndMeasurePans(fourier.NewFFT(u.windowSize))
	require.NoError(t, err)
	require.True(t, ok)

	for i, pan := range tw.pans {
		assert.Zero(t, pan.backToFront, "bin %d", i+1)
	}
}

func TestPhaseDifferenceWrapsToHalfCircle(t *testing.T) {
	// A raw difference of 3π/2 is the same circular relationship as π/2,
	// so both must land at the same front/back position.
	wrapped := 3 * math.Pi / 2
	if wrapped > math.Pi {
		wrapped = 2*math.Pi - wrapped
	}
	assert.InDelta(t, math.Pi/2, wrapped, testutil.DefaultTolerance)
}
