package mathutil

import "math"

// dbPerDecade is the decibel scaling factor for amplitude ratios.
const dbPerDecade = 20.0

// DBToAmplitude converts a decibel value to a linear amplitude factor.
// Negative decibels attenuate; 0 dB is unity gain.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/dbPerDecade)
}

// AmplitudeToDB converts a linear amplitude factor to decibels.
func AmplitudeToDB(amplitude float64) float64 {
	return dbPerDecade * math.Log10(amplitude)
}
