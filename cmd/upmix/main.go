// Command upmix converts a stereo WAV file into 4, 5 or 5.1 channel
// surround.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quadtone/upmix"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		channelsFlag   string
		matrixFlag     string
		configFlag     string
		lowFlag        float64
		minimumFlag    float64
		headroomFlag   float64
		fftSizeFlag    int
		threadsFlag    int
		maxSamplesFlag int
		loudFlag       bool
		keepAwakeFlag  bool
		quietFlag      bool
	)

	cmd := &cobra.Command{
		Use:           "upmix [flags] <source.wav> <target.wav>",
		Short:         "Upmix stereo WAV files to 4, 5 or 5.1 channel surround",
		Long: `Upmix converts a stereo WAV file into surround sound by estimating a
per-frequency position from inter-channel amplitude and phase and steering
each frequency through a selectable decode matrix (QS, SQ, Dolby Stereo
and related families).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				fileCfg, err := loadFileConfig(configFlag)
				if err != nil {
					return err
				}
				applyFileConfig(cmd, fileCfg,
					&channelsFlag, &matrixFlag,
					&lowFlag, &minimumFlag, &headroomFlag,
					&fftSizeFlag, &threadsFlag, &maxSamplesFlag,
					&loudFlag, &keepAwakeFlag)
			}

			layout, err := upmix.ParseChannelLayout(channelsFlag)
			if err != nil {
				return err
			}
			format, err := upmix.ParseMatrixFormat(matrixFlag)
			if err != nil {
				return err
			}

			cfg := upmix.DefaultConfig()
			cfg.SourcePath = args[0]
			cfg.TargetPath = args[1]
			cfg.Layout = layout
			cfg.Matrix = format
			cfg.LowFrequency = lowFlag
			cfg.MinimumSteeredAmplitude = minimumFlag
			cfg.HeadroomDB = headroomFlag
			cfg.FFTSize = fftSizeFlag
			cfg.Threads = threadsFlag
			cfg.MaxSamplesPerFile = maxSamplesFlag
			cfg.Loud = loudFlag
			cfg.KeepAwake = keepAwakeFlag

			if !quietFlag && isatty.IsTerminal(os.Stderr.Fd()) {
				cfg.Progress = os.Stderr
			}

			stats, err := upmix.Upmix(cfg)
			if err != nil {
				return err
			}

			fmt.Println(renderSummary(stats))
			return nil
		},
	}

	cmd.Flags().StringVar(&channelsFlag, "channels", "5.1", "Output channel layout: 4, 5 or 5.1")
	cmd.Flags().StringVar(&matrixFlag, "matrix", "default", "Decode matrix: default, qs, rm, horseshoe, dolby, sq or sqexperimental")
	cmd.Flags().Float64Var(&lowFlag, "low", upmix.DefaultLowFrequency, "Lowest steered frequency in Hz")
	cmd.Flags().Float64Var(&minimumFlag, "minimum", upmix.DefaultMinimumSteeredAmplitude, "Minimum amplitude for a frequency to be steered")
	cmd.Flags().Float64Var(&headroomFlag, "headroom", 0, "Headroom in dB subtracted from full scale")
	cmd.Flags().IntVar(&fftSizeFlag, "fft-size", 0, "Analysis window size override (0 = automatic)")
	cmd.Flags().IntVar(&threadsFlag, "threads", 0, "Worker thread count (0 = one per CPU)")
	cmd.Flags().IntVar(&maxSamplesFlag, "max-samples-per-file", 0, "Sample cap per output file (0 = WAV size limit)")
	cmd.Flags().BoolVar(&loudFlag, "loud", false, "Skip the decode matrix's level compensation")
	cmd.Flags().BoolVar(&keepAwakeFlag, "keep-awake", false, "Keep the system awake while upmixing")
	cmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "TOML file supplying flag defaults")

	return cmd
}

func renderSummary(stats *upmix.Stats) string {
	rows := [][]string{
		{"Samples written", strconv.Itoa(stats.SamplesWritten)},
		{"Output files", strconv.Itoa(stats.OutputFiles)},
		{"Channels", strconv.Itoa(stats.Channels)},
		{"Sample rate", fmt.Sprintf("%d Hz", stats.SampleRate)},
		{"Window size", strconv.Itoa(stats.WindowSize)},
		{"Elapsed", stats.Elapsed.Round(tableElapsedPrecision).String()},
	}
	return renderTable([]string{"Result", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight})
}
