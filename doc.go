// Package upmix converts stereo WAV recordings into 4, 5 or 5.1 channel
// surround WAV files.
//
// The conversion runs a sliding FFT over the stereo signal with a hop of a
// single sample, estimates a per-frequency position from the inter-channel
// amplitude and phase relationships, smooths the front/back estimate over a
// window-length neighborhood, and re-synthesizes one output spectrum per
// surround channel through a selectable decode matrix (QS, SQ, Dolby
// Stereo and related families).
//
// Basic use:
//
//	cfg := upmix.DefaultConfig()
//	cfg.SourcePath = "concert.wav"
//	cfg.TargetPath = "concert-5.1.wav"
//	cfg.Layout = upmix.FiveOne
//	cfg.Matrix = upmix.MatrixQS
//	stats, err := upmix.Upmix(cfg)
//
// Outputs larger than the WAV size limit are split across numbered files
// automatically.
package upmix
