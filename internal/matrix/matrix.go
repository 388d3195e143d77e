// Package matrix implements the decode-matrix steering policies that map an
// estimated pan position onto output channel amplitudes and phases.
//
// Each supported matrix family is a variant of the same small contract:
// a global level compensation factor, a flag selecting between the
// phase-encoded and amplitude-encoded left/right steering algorithms, and a
// per-family phase rotation applied to the four main channels. The set of
// families is closed, so the policy is a plain struct built by an exhaustive
// constructor rather than an open interface.
package matrix

import (
	"fmt"
	"math"
)

// CenterAmplitudeAdjustment is the equal-power correction (1/√2) applied
// when a tone is panned between two speakers, so a centered tone is not
// perceived as louder than one isolated in a single speaker.
const CenterAmplitudeAdjustment = 1.0 / math.Sqrt2

// Per-family level compensation factors. Phase matrices fold rear energy
// into both stereo channels, so decoding without compensation plays louder
// than the source; each factor undoes the family's encoding gain.
const (
	defaultAdjustment   = 1.0
	qsAdjustment        = 0.9238795325112867 // cos(π/8), QS encoding gain
	horseshoeAdjustment = 0.8660254037844386 // cos(π/6)
	dolbyAdjustment     = CenterAmplitudeAdjustment
	sqAdjustment        = CenterAmplitudeAdjustment
)

// quarterTurn is the ±90° rear rotation used by phase-matrix decoding.
const quarterTurn = math.Pi / 2

// Format identifies a decode-matrix family.
type Format int

const (
	// Default applies no phase rotation and no level compensation. Suitable
	// for material that was never matrix-encoded.
	Default Format = iota

	// QS decodes Sansui QS (a.k.a. Regular Matrix) recordings.
	QS

	// Horseshoe decodes the wider "horseshoe" variant of QS.
	Horseshoe

	// DolbyStereo decodes Dolby Stereo / Pro Logic style encodings with a
	// single phase-lagged surround feed.
	DolbyStereo

	// SQ decodes CBS SQ recordings, whose rear left/right placement is
	// phase-encoded rather than amplitude-encoded.
	SQ

	// SQExperimental is an SQ variant without level compensation, kept for
	// comparison listening.
	SQExperimental
)

// String returns the CLI spelling of the format.
func (f Format) String() string {
	switch f {
	case Default:
		return "default"
	case QS:
		return "qs"
	case Horseshoe:
		return "horseshoe"
	case DolbyStereo:
		return "dolby"
	case SQ:
		return "sq"
	case SQExperimental:
		return "sqexperimental"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Matrix is one decode family's steering policy. It is immutable after
// construction and safe for concurrent use by all worker goroutines.
type Matrix struct {
	format              Format
	amplitudeAdjustment float64
	steerRightLeft      bool

	leftFrontShift  float64
	rightFrontShift float64
	leftRearShift   float64
	rightRearShift  float64
}

// New builds the policy for the given family.
func New(format Format) (*Matrix, error) {
	switch format {
	case Default:
		return &Matrix{
			format:              Default,
			amplitudeAdjustment: defaultAdjustment,
		}, nil

	case QS:
		return &Matrix{
			format:              QS,
			amplitudeAdjustment: qsAdjustment,
			leftRearShift:       -quarterTurn,
			rightRearShift:      quarterTurn,
		}, nil

	case Horseshoe:
		return &Matrix{
			format:              Horseshoe,
			amplitudeAdjustment: horseshoeAdjustment,
			leftRearShift:       -quarterTurn,
			rightRearShift:      quarterTurn,
		}, nil

	case DolbyStereo:
		// Dolby's surround channel is a single phase-lagged feed; both rears
		// get the same rotation.
		return &Matrix{
			format:              DolbyStereo,
			amplitudeAdjustment: dolbyAdjustment,
			leftRearShift:       -quarterTurn,
			rightRearShift:      -quarterTurn,
		}, nil

	case SQ:
		return &Matrix{
			format:              SQ,
			amplitudeAdjustment: sqAdjustment,
			steerRightLeft:      true,
			leftRearShift:       quarterTurn,
			rightRearShift:      -quarterTurn,
		}, nil

	case SQExperimental:
		return &Matrix{
			format:              SQExperimental,
			amplitudeAdjustment: defaultAdjustment,
			steerRightLeft:      true,
			leftRearShift:       quarterTurn,
			rightRearShift:      -quarterTurn,
		}, nil

	default:
		return nil, fmt.Errorf("unknown matrix format %d", int(format))
	}
}

// Format returns the family this policy decodes.
func (m *Matrix) Format() Format {
	return m.format
}

// AmplitudeAdjustment returns the family's level compensation factor.
// It is applied to steered amplitudes unless the loud override is active.
func (m *Matrix) AmplitudeAdjustment() float64 {
	return m.amplitudeAdjustment
}

// SteerRightLeft reports whether the family encodes rear left/right
// placement in phase rather than amplitude. Such families need the
// amplitude-domain left/right mixing algorithm; all others steer the left
// and right channels independently.
func (m *Matrix) SteerRightLeft() bool {
	return m.steerRightLeft
}

// PhaseShift applies the family's phase rotation to the four main channel
// phases in place.
func (m *Matrix) PhaseShift(leftFront, rightFront, leftRear, rightRear *float64) {
	*leftFront += m.leftFrontShift
	*rightFront += m.rightFrontShift
	*leftRear += m.leftRearShift
	*rightRear += m.rightRearShift
}

// Widen is an amplitude-domain stereo/surround widening hook. It is part of
// the policy contract but deliberately inert: widening favors too much
// steering to the rear and degrades audio quality, so the steering loop
// never calls it. It is retained so the capability's absence is visibly a
// choice rather than an accident.
func (m *Matrix) Widen(backToFront, leftToRight *float64) {
	_ = backToFront
	_ = leftToRight
}
