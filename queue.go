package fxfer

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/restenvelope"
)

// ErrCancelled is returned by an item's result when Cancel was called
// on it before its upload started. An upload already in flight is not
// interrupted by Cancel.
var ErrCancelled = errors.New("fxfer: upload cancelled")

// QueueItem is one file accepted by a QueueUploader.
type QueueItem struct {
	ID       string
	Endpoint string
	Input    any
	Method   string
	Params   map[string]any
	Ambient  hostctx.Context
}

// QueueResult is delivered once per processed item. Items are processed
// one at a time, so results arrive in enqueue order.
type QueueResult struct {
	ID       string
	Envelope restenvelope.Envelope
	Error    error
}

// QueueUploader is a thin pause/resume/cancel management wrapper
// around a single per-file Uploader, intended for interactive
// file-picker use. It processes one item at a time; pausing blocks
// the loop between items rather than mid-upload, since the per-file
// engine has no mid-block suspension hook of its own. Ground:
// proxy.go's interruptedChan/completedChan signaling idiom, generalized
// from a single transfer to a queue of them.
type QueueUploader struct {
	logger   logr.Logger
	uploader Uploader
	results  chan QueueResult

	mu        sync.Mutex
	paused    bool
	resumeCh  chan struct{}
	cancelled map[string]bool

	items chan QueueItem
}

// NewQueueUploader wraps uploader with pause/resume/cancel controls.
// queueSize bounds how many pending items may be enqueued before
// Enqueue blocks.
func NewQueueUploader(logger logr.Logger, uploader Uploader, queueSize int) *QueueUploader {
	if queueSize <= 0 {
		queueSize = 1
	}
	q := &QueueUploader{
		logger:    logger.WithName("queue"),
		uploader:  uploader,
		results:   make(chan QueueResult, queueSize),
		items:     make(chan QueueItem, queueSize),
		cancelled: make(map[string]bool),
	}
	return q
}

// Run processes queued items until ctx is done or Close is called
// (closing the item channel). It should be run in its own goroutine.
func (q *QueueUploader) Run(ctx context.Context) {
	defer close(q.results)
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.items:
			if !ok {
				return
			}
			q.waitIfPaused(ctx)
			q.results <- q.processOne(ctx, item)
		}
	}
}

func (q *QueueUploader) processOne(ctx context.Context, item QueueItem) QueueResult {
	if q.isCancelled(item.ID) {
		return QueueResult{ID: item.ID, Error: ErrCancelled}
	}
	env, err := q.uploader.Upload(ctx, item.Endpoint, item.Input, item.Method, item.Params, item.Ambient)
	return QueueResult{ID: item.ID, Envelope: env, Error: err}
}

// Enqueue adds an item to the queue; it blocks if the queue is full.
func (q *QueueUploader) Enqueue(item QueueItem) { q.items <- item }

// Close signals no more items will be enqueued.
func (q *QueueUploader) Close() { close(q.items) }

// Results returns the channel of completed items.
func (q *QueueUploader) Results() <-chan QueueResult { return q.results }

// Pause stops the loop from starting any new item until Resume is
// called. An item already in flight is not interrupted.
func (q *QueueUploader) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return
	}
	q.paused = true
	q.resumeCh = make(chan struct{})
}

// Resume releases a prior Pause.
func (q *QueueUploader) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused {
		return
	}
	q.paused = false
	close(q.resumeCh)
}

func (q *QueueUploader) waitIfPaused(ctx context.Context) {
	q.mu.Lock()
	ch := q.resumeCh
	paused := q.paused
	q.mu.Unlock()
	if !paused {
		return
	}
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// Cancel marks an item (by ID) so that, if it has not yet started, it
// resolves with ErrCancelled instead of uploading.
func (q *QueueUploader) Cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled[id] = true
}

func (q *QueueUploader) isCancelled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[id]
}
