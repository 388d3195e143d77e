package engine

import "sync"

// windowSource hands out overlapping analysis windows, advancing one sample
// per request. It keeps one sliding buffer per input channel, padded with
// half a window of silence at the front so the first window is centered on
// the first real sample, and keeps synthesizing silence past end-of-input
// so the last real samples get a complete trailing window.
type windowSource struct {
	mu sync.Mutex

	source       Source
	totalSamples int
	windowSize   int
	midpoint     int

	// Ring buffers of the most recent windowSize-1 samples per channel.
	// A window is the buffer contents plus one freshly read sample.
	left  *sampleRing
	right *sampleRing

	// nextWindow is the center index of the next window to hand out; one
	// window is produced per input sample.
	nextWindow int

	// nextRead is the next absolute input index to read (or pad).
	nextRead int
}

func newWindowSource(source Source, totalSamples, windowSize int) (*windowSource, error) {
	midpoint := windowSize / 2

	s := &windowSource{
		source:       source,
		totalSamples: totalSamples,
		windowSize:   windowSize,
		midpoint:     midpoint,
		left:         newSampleRing(windowSize),
		right:        newSampleRing(windowSize),
	}

	// Seed the buffers: half a window of leading silence, then the first
	// midpoint-1 real samples. The first advance() completes window 0.
	for range midpoint {
		s.left.push(0)
		s.right.push(0)
	}
	for range midpoint - 1 {
		if err := s.advance(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// advance reads one more sample pair, substituting silence once the input
// is exhausted, and appends it to both channel buffers.
func (s *windowSource) advance() error {
	if s.nextRead < s.totalSamples {
		l, err := s.source.ReadSample(s.nextRead, 0)
		if err != nil {
			return err
		}
		r, err := s.source.ReadSample(s.nextRead, 1)
		if err != nil {
			return err
		}
		s.left.push(l)
		s.right.push(r)
	} else {
		s.left.push(0)
		s.right.push(0)
	}
	s.nextRead++
	return nil
}

// next returns owned snapshots of the next window for both channels along
// with the absolute index of the last input sample the window covers, then
// drops the oldest sample so the buffers are ready for the following
// one-sample hop. ok is false once every input sample has received a
// window.
//
// The buffers are only locked for the read and copy; the transform itself
// runs outside the lock.
func (s *windowSource) next() (left, right []float64, lastSampleCtr int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextWindow >= s.totalSamples {
		return nil, nil, 0, false, nil
	}

	if err := s.advance(); err != nil {
		return nil, nil, 0, false, err
	}

	lastSampleCtr = s.nextWindow + s.midpoint - 1
	s.nextWindow++

	left = s.left.snapshot()
	right = s.right.snapshot()
	s.left.pop()
	s.right.pop()

	return left, right, lastSampleCtr, true, nil
}

// sampleRing is a fixed-capacity FIFO of samples.
type sampleRing struct {
	buf  []float64
	head int
	n    int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]float64, capacity)}
}

func (r *sampleRing) push(v float64) {
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *sampleRing) pop() {
	r.head = (r.head + 1) % len(r.buf)
	r.n--
}

// snapshot returns a contiguous, owned copy of the ring contents in order.
func (r *sampleRing) snapshot() []float64 {
	out := make([]float64, r.n)
	first := copy(out, r.buf[r.head:min(r.head+r.n, len(r.buf))])
	copy(out[first:], r.buf[:r.n-first])
	return out
}
