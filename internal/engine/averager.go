package engine

// enqueueAndAverage moves finished analyses from the pending map into the
// ordered queue and emits temporally averaged windows once a full
// window-length neighborhood is present.
//
// The section is guarded by a non-blocking lock: at most one worker
// reassembles at any instant, and a worker that finds the lock taken simply
// goes back to producing transforms instead of waiting. A skipped attempt
// is harmless because whichever worker holds the lock (or the next one to
// acquire it) performs the same catch-up work.
func (u *Upmixer) enqueueAndAverage() {
	if !u.orderedMu.TryLock() {
		return
	}
	defer u.orderedMu.Unlock()

	// Drain every consecutively-numbered analysis out of the pending map.
	// The map has its own lock so analysis producers are never blocked on a
	// worker that is busy averaging.
	u.pendingMu.Lock()
	for {
		tw, ok := u.pending[u.nextExpected]
		if !ok {
			break
		}
		delete(u.pending, u.nextExpected)
		u.nextExpected++

		u.ordered = append(u.ordered, tw)
	}
	u.pendingMu.Unlock()

	// While the ordered queue spans a full window, emit the average centered
	// on its temporal midpoint and slide forward one sample.
	windowSize := float64(u.windowSize)
	for len(u.ordered) >= u.windowSize {
		// The running sums cover exactly the first summed entries of the
		// queue. A drain can append far more than one window's worth at
		// once, so top the sums up to the neighborhood length here, never
		// on entry, or entries beyond the neighborhood would leak into the
		// mean.
		for u.summed < u.windowSize {
			for i, pan := range u.ordered[u.summed].pans {
				u.panSums[i] += pan.backToFront
			}
			u.summed++
		}

		center := u.ordered[u.midpoint]

		// Only the front/back position is averaged; amplitude and
		// left/right are carried from the midpoint analysis as-is.
		averaged := make([]frequencyPan, len(u.panSums))
		for i := range averaged {
			averaged[i] = frequencyPan{
				amplitude:   center.pans[i].amplitude,
				leftToRight: center.pans[i].leftToRight,
				backToFront: u.panSums[i] / windowSize,
			}
		}

		u.enqueueAveraged(&transformedWindow{
			lastSampleCtr: center.lastSampleCtr,
			left:          center.left,
			right:         center.right,
			mono:          center.mono,
			pans:          averaged,
		})

		oldest := u.ordered[0]
		for i, pan := range oldest.pans {
			u.panSums[i] -= pan.backToFront
		}
		u.summed--
		u.ordered[0] = nil
		u.ordered = u.ordered[1:]
	}

	// Reclaim the queue's leading capacity once the drained prefix dominates.
	if cap(u.ordered) > 2*u.windowSize && len(u.ordered) <= u.windowSize {
		compact := make([]*transformedWindow, len(u.ordered), 2*u.windowSize)
		copy(compact, u.ordered)
		u.ordered = compact
	}
}

func (u *Upmixer) enqueueAveraged(tw *transformedWindow) {
	u.averagedMu.Lock()
	u.averaged = append(u.averaged, tw)
	u.averagedMu.Unlock()
}

// dequeueAveraged pops the next averaged window ready for steering, in the
// gap-free order reassembly established.
func (u *Upmixer) dequeueAveraged() (*transformedWindow, bool) {
	u.averagedMu.Lock()
	defer u.averagedMu.Unlock()

	if len(u.averaged) == 0 {
		return nil, false
	}
	tw := u.averaged[0]
	u.averaged[0] = nil
	u.averaged = u.averaged[1:]
	return tw, true
}
