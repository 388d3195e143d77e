package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// fileConfig mirrors the command-line flags in a TOML file. Every field is
// optional; values from the file apply only where the corresponding flag
// was not given on the command line.
type fileConfig struct {
	Channels          *string  `toml:"channels"`
	Matrix            *string  `toml:"matrix"`
	Low               *float64 `toml:"low"`
	Minimum           *float64 `toml:"minimum"`
	Headroom          *float64 `toml:"headroom"`
	FFTSize           *int     `toml:"fft_size"`
	Threads           *int     `toml:"threads"`
	MaxSamplesPerFile *int     `toml:"max_samples_per_file"`
	Loud              *bool    `toml:"loud"`
	KeepAwake         *bool    `toml:"keep_awake"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyFileConfig copies file values into flag variables that were left at
// their defaults on the command line.
func applyFileConfig(cmd *cobra.Command, cfg *fileConfig,
	channels, matrix *string,
	low, minimum, headroom *float64,
	fftSize, threads, maxSamples *int,
	loud, keepAwake *bool,
) {
	setString(cmd, "channels", channels, cfg.Channels)
	setString(cmd, "matrix", matrix, cfg.Matrix)
	setFloat(cmd, "low", low, cfg.Low)
	setFloat(cmd, "minimum", minimum, cfg.Minimum)
	setFloat(cmd, "headroom", headroom, cfg.Headroom)
	setInt(cmd, "fft-size", fftSize, cfg.FFTSize)
	setInt(cmd, "threads", threads, cfg.Threads)
	setInt(cmd, "max-samples-per-file", maxSamples, cfg.MaxSamplesPerFile)
	setBool(cmd, "loud", loud, cfg.Loud)
	setBool(cmd, "keep-awake", keepAwake, cfg.KeepAwake)
}

func setString(cmd *cobra.Command, name string, dst *string, src *string) {
	if src != nil && !cmd.Flags().Changed(name) {
		*dst = *src
	}
}

func setFloat(cmd *cobra.Command, name string, dst *float64, src *float64) {
	if src != nil && !cmd.Flags().Changed(name) {
		*dst = *src
	}
}

func setInt(cmd *cobra.Command, name string, dst *int, src *int) {
	if src != nil && !cmd.Flags().Changed(name) {
		*dst = *src
	}
}

func setBool(cmd *cobra.Command, name string, dst *bool, src *bool) {
	if src != nil && !cmd.Flags().Changed(name) {
		*dst = *src
	}
}
