package fxfer

import "sync/atomic"

// ProgressUpdatedCallback is invoked after each block completes.
// Calls are monotonically non-decreasing, and the final call before
// the upload resolves is exactly 1.0 whenever blockCount is finite.
// No callbacks fire while blockCount is unknown (streaming, before
// end-of-stream).
type ProgressUpdatedCallback func(fraction float64)

// progressTracker counts completed blocks against a block count that
// may still be unknown (streaming mode, before end-of-stream). It
// suppresses every callback until the count is frozen, per §4.3 Phase 4.
type progressTracker struct {
	completed  atomic.Int64
	blockCount atomic.Int64 // -1 == unknown
	onProgress ProgressUpdatedCallback
}

func newProgressTracker(blockCount *int, onProgress ProgressUpdatedCallback) *progressTracker {
	t := &progressTracker{onProgress: onProgress}
	if blockCount == nil {
		t.blockCount.Store(-1)
	} else {
		t.blockCount.Store(int64(*blockCount))
	}
	return t
}

// freeze is called once streaming reaches end-of-stream, fixing the
// block count so subsequent completions can compute a fraction.
func (t *progressTracker) freeze(blockCount int) {
	t.blockCount.Store(int64(blockCount))
}

// blockDone records one completed block and, if the count is known,
// reports the new fraction to onProgress.
func (t *progressTracker) blockDone() {
	completed := t.completed.Add(1)
	count := t.blockCount.Load()
	if count <= 0 || t.onProgress == nil {
		return
	}
	fraction := float64(completed) / float64(count)
	if fraction > 1 {
		fraction = 1
	}
	t.onProgress(fraction)
}

// finish emits the mandatory final 1.0, unless the block count is
// still unknown (a caller that never freezes it, e.g. a failed
// stream, gets no synthetic completion callback).
func (t *progressTracker) finish() {
	if t.blockCount.Load() <= 0 || t.onProgress == nil {
		return
	}
	t.onProgress(1.0)
}
