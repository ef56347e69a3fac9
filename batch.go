package fxfer

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/derektruong/fxfer-upload/internal/awssig"
	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/restenvelope"
	"github.com/derektruong/fxfer-upload/internal/xferio"
)

// BatchFileResult is one file's outcome within a batch, in input
// order. Exactly one of Envelope or Error is set.
type BatchFileResult struct {
	Envelope restenvelope.Envelope
	Error    error
}

// BatchUploader runs N per-file uploaders with bounded concurrency,
// aggregating progress and surfacing partial failure.
type BatchUploader interface {
	// UploadMany uploads every input to endpoint, in input order,
	// running at most the configured concurrency at once. The returned
	// error is a *BatchError when one or more files failed.
	UploadMany(
		ctx context.Context,
		endpoint string,
		inputs []any,
		method string,
		params map[string]any,
		ambient hostctx.Context,
	) ([]BatchFileResult, error)
}

type batchUploader struct {
	logger  logr.Logger
	adapter xferio.Adapter
	rest    restenvelope.Caller
	relay   awssig.Relay
	region  string

	cfg *batchConfig
}

// NewBatchUploader builds a BatchUploader sharing the same
// environment adapter, REST caller, and AWS relay as the per-file
// Uploader, since every spawned per-file engine uses them too.
func NewBatchUploader(
	logger logr.Logger,
	adapter xferio.Adapter,
	rest restenvelope.Caller,
	relay awssig.Relay,
	region string,
	options ...BatchOption,
) BatchUploader {
	cfg := newBatchConfig()
	cfg.logger = logger
	for _, opt := range options {
		opt(cfg)
	}
	return &batchUploader{
		logger:  cfg.logger.WithName("batch"),
		adapter: adapter,
		rest:    rest,
		relay:   relay,
		region:  region,
		cfg:     cfg,
	}
}

func (b *batchUploader) UploadMany(
	ctx context.Context,
	endpoint string,
	inputs []any,
	method string,
	params map[string]any,
	ambient hostctx.Context,
) ([]BatchFileResult, error) {
	fileCount := len(inputs)
	results := make([]BatchFileResult, fileCount)
	fileProgress := make([]float64, fileCount)
	var progressMu sync.Mutex

	var group errgroup.Group
	group.SetLimit(b.cfg.concurrency)

	for i, input := range inputs {
		i, input := i, input
		group.Go(func() error {
			result := b.uploadOneWithRetry(ctx, endpoint, input, method, params, ambient, i, fileCount, &progressMu, fileProgress)
			results[i] = result
			if b.cfg.onFileComplete != nil {
				b.cfg.onFileComplete(i, fileCount, result)
			}
			return nil
		})
	}
	_ = group.Wait()

	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) > 0 {
		return results, &BatchError{Errors: errs, Results: results}
	}
	return results, nil
}

func (b *batchUploader) uploadOneWithRetry(
	ctx context.Context,
	endpoint string,
	input any,
	method string,
	params map[string]any,
	ambient hostctx.Context,
	fileIndex, fileCount int,
	progressMu *sync.Mutex,
	fileProgress []float64,
) BatchFileResult {
	perFileOpts := append([]UploaderOption{}, b.cfg.uploaderOpts...)
	perFileOpts = append(perFileOpts, WithProgress(func(fraction float64) {
		progressMu.Lock()
		fileProgress[fileIndex] = fraction
		total := lo.Sum(fileProgress) / float64(fileCount)
		progressMu.Unlock()
		if b.cfg.onProgress != nil {
			b.cfg.onProgress(fileIndex, fileCount, fraction, total)
		}
	}))

	for attempt := 1; ; attempt++ {
		uploader := NewUploader(b.logger, b.adapter, b.rest, b.relay, b.region, perFileOpts...)
		env, err := uploader.Upload(ctx, endpoint, input, method, params, ambient)
		if err == nil {
			return BatchFileResult{Envelope: env}
		}

		if b.cfg.onError == nil {
			return BatchFileResult{Error: err}
		}
		idx := fileIndex
		resolveErr := b.cfg.onError(err, ErrorContext{Phase: PhaseFile, Attempt: attempt, FileIndex: &idx})
		if resolveErr != nil {
			return BatchFileResult{Error: err}
		}
	}
}
