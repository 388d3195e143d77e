package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/quadtone/upmix/internal/matrix"
	"gonum.org/v1/gonum/dsp/fourier"
)

// matrixCenterAdjustment is the equal-power correction shared with the
// steering policies.
const matrixCenterAdjustment = matrix.CenterAmplitudeAdjustment

// Upmixer is the shared state of one upmix run. It is created once before
// the workers start and destroyed after every worker has joined; each
// mutable section has its own lock so unrelated stages never serialize on
// one coarse mutex.
type Upmixer struct {
	params     Params
	windowSize int
	midpoint   int
	scale      float64
	gain       float64
	lfeLevels  []float64

	source *windowSource

	// Finished analyses land here out of order, keyed by last sample index.
	pendingMu sync.Mutex
	pending   map[int]*transformedWindow

	// Reassembled, gap-free run of analyses awaiting averaging, plus the
	// running per-bin back-to-front sums over the first summed entries of
	// that run (at most one window's worth). Guarded by the try-lock
	// reassembly section.
	orderedMu    sync.Mutex
	ordered      []*transformedWindow
	nextExpected int
	panSums      []float64
	summed       int

	// Averaged windows ready for steering and resynthesis.
	averagedMu sync.Mutex
	averaged   []*transformedWindow

	// Writer bookkeeping. Write calls happen strictly in queue pop order,
	// which reassembly already guarantees is gap-free.
	writerMu       sync.Mutex
	writer         FrameWriter
	samplesWritten int

	// First worker error wins; the abort flag stops the other workers at
	// their next loop boundary.
	abort   atomic.Bool
	errOnce sync.Once
	runErr  error
}

// New assembles an upmixer over the given source and writer.
func New(params Params, source Source, writer FrameWriter) (*Upmixer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Workers == 0 {
		params.Workers = runtime.NumCPU()
	}
	if params.Gain == 0 {
		params.Gain = 1
	}

	windowSize := params.WindowSize
	midpoint := windowSize / 2

	windowSrc, err := newWindowSource(source, params.TotalSamples, windowSize)
	if err != nil {
		return nil, err
	}

	u := &Upmixer{
		params:     params,
		windowSize: windowSize,
		midpoint:   midpoint,
		scale:      scaleNumerator / float64(windowSize),
		gain:       params.Gain,
		source:     windowSrc,
		pending:    make(map[int]*transformedWindow),
		ordered:    make([]*transformedWindow, 0, 2*windowSize),
		panSums:    make([]float64, midpoint-1),
		averaged:   make([]*transformedWindow, 0, windowSize),
		writer:     writer,

		// Analyses are tagged by the last sample index each window covers;
		// the first window ends at midpoint-1.
		nextExpected: midpoint - 1,
	}
	if params.HasLFE {
		u.lfeLevels = newLFELevels(windowSize, params.SampleRate)
	}

	return u, nil
}

// Run executes the upmix: it spawns Workers-1 additional goroutines, runs
// the same loop on the calling goroutine, joins everyone, drains whatever
// is still queued, and flushes the writer exactly once. On failure the
// first error is returned and the outputs are left unflushed; a partially
// upmixed file is not a useful result, so there is no recovery path.
func (u *Upmixer) Run() error {
	var wg sync.WaitGroup
	for range u.params.Workers - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.runWorker()
		}()
	}

	u.runWorker()
	wg.Wait()

	if u.runErr != nil {
		return u.runErr
	}

	// Final drain: a worker that lost the reassembly try-lock on its last
	// iteration may have left averaged windows queued.
	u.enqueueAndAverage()
	if err := u.panAndWriteUpmixedWindows(fourier.NewFFT(u.windowSize), newPanScratch(u.windowSize)); err != nil {
		return err
	}

	u.params.Logger.Finish()
	return u.writer.Flush()
}

// SamplesWritten returns the number of output sample sets written so far.
func (u *Upmixer) SamplesWritten() int {
	u.writerMu.Lock()
	defer u.writerMu.Unlock()
	return u.samplesWritten
}

// runWorker is the loop every pool member executes: transform one window,
// publish it for reassembly, opportunistically reassemble and average, then
// steer and write whatever is ready. Ends when the window source is
// exhausted, after one more pass to drain queued work.
func (u *Upmixer) runWorker() {
	if err := u.runWorkerLoop(); err != nil {
		u.fail(err)
	}
}

func (u *Upmixer) runWorkerLoop() error {
	// Each worker owns its transform plan and scratch space; they are never
	// shared.
	fft := fourier.NewFFT(u.windowSize)
	scratch := newPanScratch(u.windowSize)

	for !u.abort.Load() {
		tw, ok, err := u.transformAndMeasurePans(fft)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		u.pendingMu.Lock()
		u.pending[tw.lastSampleCtr] = tw
		u.pendingMu.Unlock()

		u.enqueueAndAverage()

		if err := u.panAndWriteUpmixedWindows(fft, scratch); err != nil {
			return err
		}
	}

	// Dangling averaged windows are possible because the queue is drained
	// opportunistically; one more pass mops them up before this worker
	// exits.
	return u.panAndWriteUpmixedWindows(fft, scratch)
}

func (u *Upmixer) fail(err error) {
	u.errOnce.Do(func() {
		u.runErr = err
	})
	u.abort.Store(true)
}
