package upmix

// Processing defaults.
const (
	// DefaultLowFrequency is the lowest steered frequency in Hz.
	DefaultLowFrequency = 20.0

	// DefaultMinimumSteeredAmplitude is the bin amplitude floor below which
	// no position is estimated.
	DefaultMinimumSteeredAmplitude = 0.01
)

// Window sizing.
const (
	// MinWindowSize is the smallest analysis window the engine accepts.
	MinWindowSize = 4

	// windowFractionOfSecond sets the automatic window size: the smallest
	// transform-friendly size covering sample_rate / windowFractionOfSecond
	// samples.
	windowFractionOfSecond = 10
)

// stereoChannels is the required source channel count.
const stereoChannels = 2
