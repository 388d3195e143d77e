package engine

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// newLFELevels builds the per-bin gain curve for the low-frequency-effects
// channel: unity below the full cutoff, a raised-cosine taper between the
// full and start cutoffs, zero at and above the start cutoff. Index k holds
// the gain for bin k of the half spectrum.
func newLFELevels(windowSize, sampleRate int) []float64 {
	midpoint := windowSize / 2
	levels := make([]float64, midpoint+1)

	levels[0] = 1.0
	for binCtr := 1; binCtr <= midpoint; binCtr++ {
		frequency := float64(sampleRate) * float64(binCtr) / float64(windowSize)
		switch {
		case frequency < LFEFullHz:
			levels[binCtr] = 1.0
		case frequency < LFEStartHz:
			fraction := (frequency - LFEFullHz) / (LFEStartHz - LFEFullHz)
			levels[binCtr] = math.Cos(fraction * math.Pi / 2)
		default:
			levels[binCtr] = 0.0
		}
	}

	return levels
}

// panScratch is per-worker resynthesis scratch: the inverse transform
// outputs for each output channel. Never shared between workers.
type panScratch struct {
	leftFront  []float64
	rightFront []float64
	leftRear   []float64
	rightRear  []float64
	center     []float64
	lfe        []float64
}

func newPanScratch(windowSize int) *panScratch {
	return &panScratch{
		leftFront:  make([]float64, windowSize),
		rightFront: make([]float64, windowSize),
		leftRear:   make([]float64, windowSize),
		rightRear:  make([]float64, windowSize),
		center:     make([]float64, windowSize),
		lfe:        make([]float64, windowSize),
	}
}

// panAndWriteUpmixedWindows steers, inverse-transforms and writes every
// averaged window currently queued. The queue pop order is gap-free and
// monotonically increasing, and a frame's destination depends only on its
// absolute index, so no further ordering logic is needed at write time.
func (u *Upmixer) panAndWriteUpmixedWindows(fft *fourier.FFT, scratch *panScratch) error {
	for {
		tw, ok := u.dequeueAveraged()
		if !ok {
			return nil
		}
		if err := u.panAndWriteWindow(fft, scratch, tw); err != nil {
			return err
		}
	}
}

func (u *Upmixer) panAndWriteWindow(fft *fourier.FFT, scratch *panScratch, tw *transformedWindow) error {
	leftFront := tw.left
	rightFront := tw.right

	// Rear channels start as copies of the fronts.
	leftRear := append([]complex128(nil), leftFront...)
	rightRear := append([]complex128(nil), rightFront...)

	var center, lfe []complex128
	if u.params.HasCenter {
		center = append([]complex128(nil), tw.mono...)
	}
	if u.params.HasLFE {
		lfe = append([]complex128(nil), tw.mono...)
	}

	// Ultra-lows are never duplicated into the rears; a steered DC offset
	// is an artifact, not a position.
	leftRear[0] = 0
	rightRear[0] = 0

	// The Nyquist bin is likewise never steered.
	leftRear[u.midpoint] = 0
	rightRear[u.midpoint] = 0
	if center != nil {
		center[u.midpoint] = 0
	}

	for binCtr := 1; binCtr < u.midpoint; binCtr++ {
		u.steerBin(binCtr, tw, leftFront, rightFront, leftRear, rightRear, center)
	}

	if lfe != nil {
		for binCtr := 1; binCtr <= u.midpoint; binCtr++ {
			amplitude, phase := cmplx.Polar(lfe[binCtr])
			lfe[binCtr] = cmplx.Rect(amplitude*u.lfeLevels[binCtr], phase)
		}
	}

	fft.Sequence(scratch.leftFront, leftFront)
	fft.Sequence(scratch.rightFront, rightFront)
	fft.Sequence(scratch.leftRear, leftRear)
	fft.Sequence(scratch.rightRear, rightRear)
	if center != nil {
		fft.Sequence(scratch.center, center)
	}
	if lfe != nil {
		fft.Sequence(scratch.lfe, lfe)
	}

	return u.writeUpmixedWindow(scratch, tw, center != nil, lfe != nil)
}

// steerBin distributes one bin's energy across the output channels
// according to the averaged pan estimate and the decode family.
func (u *Upmixer) steerBin(binCtr int, tw *transformedWindow,
	leftFront, rightFront, leftRear, rightRear, center []complex128,
) {
	m := u.params.Matrix

	leftAmplitude, leftFrontPhase := cmplx.Polar(leftFront[binCtr])
	rightAmplitude, rightFrontPhase := cmplx.Polar(rightFront[binCtr])
	leftRearPhase := leftFrontPhase
	rightRearPhase := rightFrontPhase

	pan := tw.pans[binCtr-1]
	leftToRight := pan.leftToRight
	backToFront := pan.backToFront

	// Widening is deliberately not applied here; see Matrix.Widen.

	frontToBack := 1 - backToFront

	var leftFrontAmplitude, rightFrontAmplitude float64
	var leftRearAmplitude, rightRearAmplitude float64
	var centerAmplitude float64
	hasCenter := center != nil

	if m.SteerRightLeft() {
		// Phase-encoded left/right (SQ and friends): the stereo amplitudes
		// carry no usable left/right information, so the combined amplitude
		// is re-split between the speaker pairs. 0 is left, 1 is right.
		leftToRightNoCenter := leftToRight/2 + 0.5

		// Equal-power correction for tones panned between front and back.
		isolatedInFrontOrBack := math.Abs(frontToBack*2 - 1)
		pannedBetween := 1 - isolatedInFrontOrBack
		amplitude := pan.amplitude*isolatedInFrontOrBack +
			pan.amplitude*pannedBetween*matrixCenterAdjustment

		if !u.params.Loud {
			amplitude *= m.AmplitudeAdjustment()
		}

		amplitudeFront := amplitude * frontToBack
		frontSideAdjustment := math.Abs(leftToRight)
		frontCenterAdjustment := 1 - frontSideAdjustment

		if hasCenter {
			if leftToRight == 0 {
				// Dead center: the tone lives entirely in the center speaker.
				leftFrontAmplitude = 0
				rightFrontAmplitude = 0
				centerAmplitude = amplitudeFront
			} else {
				// Off-center tones split between the center and one side,
				// with the same equal-power correction.
				sideAdjustment := math.Abs(frontSideAdjustment*2 - 1)
				centerAdjustment := 1 - sideAdjustment
				amplitudeMixFront := amplitudeFront*sideAdjustment +
					amplitudeFront*centerAdjustment*matrixCenterAdjustment

				centerAmplitude = amplitudeMixFront * centerAdjustment
				if leftToRight < 0 {
					leftFrontAmplitude = amplitudeMixFront * sideAdjustment
				} else {
					rightFrontAmplitude = amplitudeMixFront * sideAdjustment
				}
			}
		} else {
			amplitudeMixFront := amplitudeFront*frontSideAdjustment +
				amplitudeFront*frontCenterAdjustment*matrixCenterAdjustment

			rightFrontAmplitude = amplitudeMixFront * leftToRightNoCenter
			leftFrontAmplitude = amplitudeMixFront - rightFrontAmplitude
		}

		// The rear pair splits on the same fraction: this family's rear
		// left/right placement is phase-encoded, so amplitude must be
		// divided explicitly here too.
		amplitudeBack := amplitude * backToFront
		rightRearAmplitude = amplitudeBack * leftToRightNoCenter
		leftRearAmplitude = amplitudeBack - rightRearAmplitude
	} else {
		// Amplitude matrices keep the left and right channels independent.
		if !u.params.Loud {
			leftAmplitude *= m.AmplitudeAdjustment()
			rightAmplitude *= m.AmplitudeAdjustment()
		}

		leftFrontAmplitude = leftAmplitude * frontToBack
		rightFrontAmplitude = rightAmplitude * frontToBack
		leftRearAmplitude = leftAmplitude * backToFront
		rightRearAmplitude = rightAmplitude * backToFront

		if hasCenter {
			// Carve the center out of the front mix in proportion to how
			// close the tone is to dead center.
			centerAmplitude = (1 - math.Abs(leftToRight)) *
				(leftFrontAmplitude + rightFrontAmplitude) *
				matrixCenterAdjustment / 2
			leftFrontAmplitude = math.Max(0, leftFrontAmplitude-centerAmplitude)
			rightFrontAmplitude = math.Max(0, rightFrontAmplitude-centerAmplitude)
		}
	}

	m.PhaseShift(&leftFrontPhase, &rightFrontPhase, &leftRearPhase, &rightRearPhase)

	leftFront[binCtr] = cmplx.Rect(leftFrontAmplitude, leftFrontPhase)
	rightFront[binCtr] = cmplx.Rect(rightFrontAmplitude, rightFrontPhase)
	leftRear[binCtr] = cmplx.Rect(leftRearAmplitude, leftRearPhase)
	rightRear[binCtr] = cmplx.Rect(rightRearAmplitude, rightRearPhase)

	if hasCenter {
		_, centerPhase := cmplx.Polar(center[binCtr])
		center[binCtr] = cmplx.Rect(centerAmplitude, centerPhase)
	}
}

// writeUpmixedWindow emits the window's newly-covered samples. Because
// windows hop one sample at a time, only the center sample is new — except
// at the file boundaries, where the first window also owns its entire first
// half and the last window its entire second half.
func (u *Upmixer) writeUpmixedWindow(scratch *panScratch, tw *transformedWindow, hasCenter, hasLFE bool) error {
	centerCtr := tw.centerSampleCtr(u.midpoint)

	start := u.midpoint
	end := u.midpoint
	if centerCtr == u.midpoint {
		start = 0
	}
	if centerCtr == u.params.TotalSamples-u.midpoint {
		end = u.windowSize - 1
	}

	// Scale the emitted run by the synthesis normalization and headroom
	// gain, in place.
	factor := u.scale * u.gain
	channels := [][]float64{scratch.leftFront, scratch.rightFront, scratch.leftRear, scratch.rightRear}
	if hasCenter {
		channels = append(channels, scratch.center)
	}
	if hasLFE {
		channels = append(channels, scratch.lfe)
	}
	for _, ch := range channels {
		run := ch[start : end+1]
		f64.Scale(run, run, factor)
	}

	u.writerMu.Lock()
	defer u.writerMu.Unlock()

	for pos := start; pos <= end; pos++ {
		frame := Frame{
			FrontLeft:  scratch.leftFront[pos],
			FrontRight: scratch.rightFront[pos],
			BackLeft:   scratch.leftRear[pos],
			BackRight:  scratch.rightRear[pos],
		}
		if hasCenter {
			frame.Center = scratch.center[pos]
		}
		if hasLFE {
			frame.LFE = scratch.lfe[pos]
		}

		if err := u.writer.WriteFrame(centerCtr-u.midpoint+pos, frame); err != nil {
			return err
		}
		u.samplesWritten++
	}

	u.params.Logger.Log(u.samplesWritten)
	return nil
}
