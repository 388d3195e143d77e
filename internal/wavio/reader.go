// Package wavio provides the sample-accurate random-access WAV container
// layer: a fully-decoded reader for the stereo source and a multi-file,
// index-addressed PCM writer for the surround output.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Decode chunk size in frames. Larger chunks reduce decoder overhead.
const readChunkFrames = 65536

// Normalization maxima per PCM bit depth.
const (
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0
)

// ErrUnsupportedFormat indicates a WAV file this tool cannot process.
var ErrUnsupportedFormat = errors.New("unsupported WAV format")

// maxValueForBitDepth returns the full-scale PCM value for a bit depth.
func maxValueForBitDepth(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return maxInt16, nil
	case 24:
		return maxInt24, nil
	case 32:
		return maxInt32, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitDepth)
	}
}

// Reader is a sample-accurate random-access view of a decoded WAV file.
// The whole file is decoded up front; the input is finite and seekable, and
// every sample is visited window-size times during analysis, so holding it
// decoded avoids re-reading each sample thousands of times.
type Reader struct {
	sampleRate int
	bitDepth   int
	channels   [][]float64
}

// OpenReader decodes the WAV file at path into memory.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file: %s", ErrUnsupportedFormat, path)
	}

	format := decoder.Format()
	numChannels := format.NumChannels
	bitDepth := int(decoder.BitDepth)
	maxVal, err := maxValueForBitDepth(bitDepth)
	if err != nil {
		return nil, err
	}
	invMaxVal := 1 / maxVal

	r := &Reader{
		sampleRate: format.SampleRate,
		bitDepth:   bitDepth,
		channels:   make([][]float64, numChannels),
	}

	intBuffer := &audio.IntBuffer{
		Data:   make([]int, readChunkFrames*numChannels),
		Format: format,
	}

	for {
		// n counts interleaved ints, not frames.
		n, err := decoder.PCMBuffer(intBuffer)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read audio data: %w", err)
		}
		if n == 0 {
			break
		}

		frames := n / numChannels
		data := intBuffer.Data[:frames*numChannels]
		for ch := range numChannels {
			buf := r.channels[ch]
			for i := range frames {
				buf = append(buf, float64(data[i*numChannels+ch])*invMaxVal)
			}
			r.channels[ch] = buf
		}
	}

	return r, nil
}

// ReadSample returns the normalized sample at the given absolute index and
// channel.
func (r *Reader) ReadSample(index, channel int) (float64, error) {
	if channel < 0 || channel >= len(r.channels) {
		return 0, fmt.Errorf("channel %d out of range (%d channels)", channel, len(r.channels))
	}
	ch := r.channels[channel]
	if index < 0 || index >= len(ch) {
		return 0, fmt.Errorf("sample %d out of range (%d samples)", index, len(ch))
	}
	return ch[index], nil
}

// Len returns the number of samples per channel.
func (r *Reader) Len() int {
	if len(r.channels) == 0 {
		return 0
	}
	return len(r.channels[0])
}

// SampleRate returns the source sample rate in Hz.
func (r *Reader) SampleRate() int {
	return r.sampleRate
}

// BitDepth returns the source PCM bit depth.
func (r *Reader) BitDepth() int {
	return r.bitDepth
}

// Channels returns the source channel count.
func (r *Reader) Channels() int {
	return len(r.channels)
}
