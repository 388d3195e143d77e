package wavio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quadtone/upmix/internal/engine"
)

// WAV container layout constants.
const (
	wavHeaderSize      = 44
	wavRiffHeaderSize  = 36
	wavPCMSubchunkSize = 16
	wavFileSizeOffset  = 4
	wavDataSizeOffset  = 40
	bitsPerByte        = 8
)

// maxRIFFChunkBytes is the largest value the 32-bit RIFF size field can
// hold; the data chunk cannot exceed it minus the header overhead.
const maxRIFFChunkBytes = math.MaxUint32

// Writer emits surround PCM frames addressed by absolute sample index.
// Frames arrive in whatever order the upmix workers finish them, so each
// one is placed with WriteAt rather than appended. When the output would
// exceed the per-file sample cap, writing continues transparently in a
// numbered sibling file.
type Writer struct {
	targetPath        string
	sampleRate        int
	bitDepth          int
	hasCenter         bool
	hasLFE            bool
	numChannels       int
	blockAlign        int
	maxSamplesPerFile int
	maxValue          float64

	mu      sync.Mutex
	files   []*outputFile
	byteBuf []byte
	flushed bool
}

// outputFile is one WAV file of a possibly-split output, tracking the
// highest sample index written so Flush can patch the size fields.
type outputFile struct {
	f         *os.File
	lastIndex int
}

// NewWriter creates a writer for the given surround layout. The center and
// LFE channels are optional; the channel order within each frame follows
// the WAV convention: front left, front right, center, LFE, back left,
// back right, with absent channels omitted.
//
// maxSamplesPerFile caps how many sample sets go into a single file before
// the writer rolls over to a numbered sibling; zero selects the largest cap
// the RIFF size field allows.
func NewWriter(targetPath string, sampleRate, bitDepth int, hasCenter, hasLFE bool, maxSamplesPerFile int) (*Writer, error) {
	maxValue, err := maxValueForBitDepth(bitDepth)
	if err != nil {
		return nil, err
	}

	numChannels := 4
	if hasCenter {
		numChannels++
	}
	if hasLFE {
		numChannels++
	}
	blockAlign := numChannels * (bitDepth / bitsPerByte)

	if maxSamplesPerFile <= 0 {
		maxSamplesPerFile = (maxRIFFChunkBytes - wavRiffHeaderSize) / blockAlign
	}

	return &Writer{
		targetPath:        targetPath,
		sampleRate:        sampleRate,
		bitDepth:          bitDepth,
		hasCenter:         hasCenter,
		hasLFE:            hasLFE,
		numChannels:       numChannels,
		blockAlign:        blockAlign,
		maxSamplesPerFile: maxSamplesPerFile,
		maxValue:          maxValue,
		byteBuf:           make([]byte, blockAlign),
	}, nil
}

// Channels returns the output channel count.
func (w *Writer) Channels() int {
	return w.numChannels
}

// FileCount returns how many output files have been opened so far.
func (w *Writer) FileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// filePath names the nth file of the split output: the target path itself
// for the first file, then "name.1.wav", "name.2.wav" and so on.
func (w *Writer) filePath(n int) string {
	if n == 0 {
		return w.targetPath
	}
	ext := filepath.Ext(w.targetPath)
	base := strings.TrimSuffix(w.targetPath, ext)
	return fmt.Sprintf("%s.%d%s", base, n, ext)
}

// fileFor returns the output file covering the given absolute sample
// index, creating it and any earlier siblings on first use. Caller holds
// w.mu.
func (w *Writer) fileFor(index int) (*outputFile, int, error) {
	fileCtr := index / w.maxSamplesPerFile

	for len(w.files) <= fileCtr {
		f, err := os.Create(w.filePath(len(w.files)))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create output file: %w", err)
		}
		if err := w.writeHeader(f); err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		w.files = append(w.files, &outputFile{f: f, lastIndex: -1})
	}

	return w.files[fileCtr], index % w.maxSamplesPerFile, nil
}

// writeHeader writes a 44-byte PCM WAV header with placeholder sizes;
// Flush patches in the real ones.
func (w *Writer) writeHeader(f *os.File) error {
	byteRate := w.sampleRate * w.blockAlign

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 0)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavPCMSubchunkSize)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.numChannels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(w.blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(w.bitDepth))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], 0)

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	return nil
}

// WriteFrame encodes one surround sample set at its absolute index.
func (w *Writer) WriteFrame(index int, frame engine.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushed {
		return fmt.Errorf("write of sample %d after flush", index)
	}

	of, inFileIndex, err := w.fileFor(index)
	if err != nil {
		return err
	}

	buf := w.byteBuf
	pos := 0
	pos = w.encodeSample(buf, pos, frame.FrontLeft)
	pos = w.encodeSample(buf, pos, frame.FrontRight)
	if w.hasCenter {
		pos = w.encodeSample(buf, pos, frame.Center)
	}
	if w.hasLFE {
		pos = w.encodeSample(buf, pos, frame.LFE)
	}
	pos = w.encodeSample(buf, pos, frame.BackLeft)
	w.encodeSample(buf, pos, frame.BackRight)

	offset := int64(wavHeaderSize) + int64(inFileIndex)*int64(w.blockAlign)
	if _, err := of.f.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("failed to write sample %d: %w", index, err)
	}

	if inFileIndex > of.lastIndex {
		of.lastIndex = inFileIndex
	}
	return nil
}

// encodeSample clamps one sample to full scale and appends it to buf in
// little-endian PCM at the writer's bit depth, returning the next offset.
func (w *Writer) encodeSample(buf []byte, pos int, sample float64) int {
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	}
	value := int32(math.Round(sample * w.maxValue))

	switch w.bitDepth {
	case 16:
		binary.LittleEndian.PutUint16(buf[pos:], uint16(int16(value)))
		return pos + 2
	case 24:
		buf[pos] = byte(value)
		buf[pos+1] = byte(value >> 8)
		buf[pos+2] = byte(value >> 16)
		return pos + 3
	default:
		binary.LittleEndian.PutUint32(buf[pos:], uint32(value))
		return pos + 4
	}
}

// Flush patches every file's RIFF and data size fields and closes it. The
// writer is unusable afterwards.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushed {
		return nil
	}
	w.flushed = true

	sizeBytes := make([]byte, 4)
	for _, of := range w.files {
		dataSize := uint32(of.lastIndex+1) * uint32(w.blockAlign)

		binary.LittleEndian.PutUint32(sizeBytes, wavRiffHeaderSize+dataSize)
		if _, err := of.f.WriteAt(sizeBytes, wavFileSizeOffset); err != nil {
			return fmt.Errorf("failed to finalize output file: %w", err)
		}

		binary.LittleEndian.PutUint32(sizeBytes, dataSize)
		if _, err := of.f.WriteAt(sizeBytes, wavDataSizeOffset); err != nil {
			return fmt.Errorf("failed to finalize output file: %w", err)
		}

		if err := of.f.Close(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
	}

	return nil
}
