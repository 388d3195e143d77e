package engine

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// transformAndMeasurePans pulls one window from the source, forward
// transforms each channel, and estimates each steerable bin's pan position.
// Returns ok=false when the source is exhausted.
//
// The pan heuristic: the front/back position comes from the wrapped phase
// difference between the left and right coefficients — in phase maps to
// front, fully out of phase maps to back — while the left/right position
// comes from the amplitude balance. Bins below the minimum steered
// amplitude or the lowest steered frequency are pinned to the front so the
// noise floor and deep bass never wander to the rear.
func (u *Upmixer) transformAndMeasurePans(fft *fourier.FFT) (*transformedWindow, bool, error) {
	leftWindow, rightWindow, lastSampleCtr, ok, err := u.source.next()
	if err != nil || !ok {
		return nil, false, err
	}

	left := fft.Coefficients(nil, leftWindow)
	right := fft.Coefficients(nil, rightWindow)

	// The mono-sum spectrum feeds the center and LFE channels. By linearity
	// of the transform it is the mean of the channel spectra; no third
	// forward transform is needed.
	var mono []complex128
	if u.params.HasCenter || u.params.HasLFE {
		mono = make([]complex128, len(left))
		for i := range mono {
			mono[i] = (left[i] + right[i]) / 2
		}
	}

	pans := make([]frequencyPan, u.midpoint-1)
	for binCtr := 1; binCtr < u.midpoint; binCtr++ {
		leftAmplitude, leftPhase := cmplx.Polar(left[binCtr])
		rightAmplitude, rightPhase := cmplx.Polar(right[binCtr])
		amplitude := leftAmplitude + rightAmplitude

		pan := frequencyPan{amplitude: amplitude}

		frequency := float64(u.params.SampleRate) * float64(binCtr) / float64(u.windowSize)
		if amplitude > 0 && amplitude >= u.params.MinimumSteeredAmplitude && frequency >= u.params.LowFrequency {
			pan.leftToRight = (rightAmplitude - leftAmplitude) / amplitude

			// Ranges 0..2π; 0 and 2π are in phase, π is out of phase
			// (think circle). Wrap to a half circle.
			phaseDifference := math.Abs(leftPhase - rightPhase)
			if phaseDifference > math.Pi {
				phaseDifference = 2*math.Pi - phaseDifference
			}
			pan.backToFront = phaseDifference / math.Pi
		}

		pans[binCtr-1] = pan
	}

	return &transformedWindow{
		lastSampleCtr: lastSampleCtr,
		left:          left,
		right:         right,
		mono:          mono,
		pans:          pans,
	}, true, nil
}
