package fxfer

import (
	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

const (
	defaultBatchConcurrency = 3
	minBatchConcurrency     = 1
	maxBatchConcurrency     = 10
)

// UploaderOption configures a per-file Uploader.
type UploaderOption func(*uploaderConfig)

type uploaderConfig struct {
	logger        logr.Logger
	disabledRetry bool
	rateLimiter   *rate.Limiter
	onProgress    ProgressUpdatedCallback
	onError       func(err error, ctx ErrorContext) error
	fileRule      fileRule
}

func newUploaderConfig() *uploaderConfig {
	return &uploaderConfig{
		logger: logr.Discard(),
	}
}

// WithLogger attaches a structured logger, replacing the one passed to
// NewUploader; every component names itself via WithName the way the
// engine's predecessors did.
func WithLogger(logger logr.Logger) UploaderOption {
	return func(c *uploaderConfig) { c.logger = logger }
}

// WithDisabledRetry disables the outer handshake-level retry entirely,
// so init/complete/handleComplete fail on their first error regardless
// of onError. Per-block retry via onError is unaffected.
func WithDisabledRetry() UploaderOption {
	return func(c *uploaderConfig) { c.disabledRetry = true }
}

// WithRateLimit caps the byte rate at which block bodies are sent,
// shared across all in-flight blocks for this upload. Off by
// default — this is not present in the original engine and is purely
// opt-in.
func WithRateLimit(bytesPerSecond int64, burst int) UploaderOption {
	return func(c *uploaderConfig) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	}
}

// WithProgress registers the per-block progress callback.
func WithProgress(cb ProgressUpdatedCallback) UploaderOption {
	return func(c *uploaderConfig) { c.onProgress = cb }
}

// WithOnError registers the phase-failure callback. Returning nil
// retries the triggering operation; returning an error fails the
// upload with the original phase error.
func WithOnError(cb func(err error, ctx ErrorContext) error) UploaderOption {
	return func(c *uploaderConfig) { c.onError = cb }
}

// BatchOption configures a BatchUploader.
type BatchOption func(*batchConfig)

type batchConfig struct {
	logger         logr.Logger
	concurrency    int
	onFileComplete func(fileIndex, fileCount int, result BatchFileResult)
	onProgress     func(fileIndex, fileCount int, fileProgress, totalProgress float64)
	onError        func(err error, ctx ErrorContext) error
	uploaderOpts   []UploaderOption
}

func newBatchConfig() *batchConfig {
	return &batchConfig{
		logger:      logr.Discard(),
		concurrency: defaultBatchConcurrency,
	}
}

// WithBatchLogger attaches a structured logger to the batch uploader,
// replacing the one passed to NewBatchUploader.
func WithBatchLogger(logger logr.Logger) BatchOption {
	return func(c *batchConfig) { c.logger = logger }
}

// WithConcurrency clamps the number of files uploaded concurrently to
// [1, 10]; default is 3.
func WithConcurrency(n int) BatchOption {
	if n < minBatchConcurrency {
		n = minBatchConcurrency
	}
	if n > maxBatchConcurrency {
		n = maxBatchConcurrency
	}
	return func(c *batchConfig) { c.concurrency = n }
}

// WithOnFileComplete registers a per-file completion callback.
func WithOnFileComplete(cb func(fileIndex, fileCount int, result BatchFileResult)) BatchOption {
	return func(c *batchConfig) { c.onFileComplete = cb }
}

// WithBatchProgress registers the aggregate progress callback;
// totalProgress is the mean of the per-file fractions over all files,
// a file that has reported no progress yet counting as 0.
func WithBatchProgress(cb func(fileIndex, fileCount int, fileProgress, totalProgress float64)) BatchOption {
	return func(c *batchConfig) { c.onProgress = cb }
}

// WithBatchOnError registers the file-level failure callback (phase
// "file"); resolving it retries the whole file from scratch.
func WithBatchOnError(cb func(err error, ctx ErrorContext) error) BatchOption {
	return func(c *batchConfig) { c.onError = cb }
}

// WithPerFileOptions forwards additional UploaderOptions to every
// per-file engine the batch spawns.
func WithPerFileOptions(opts ...UploaderOption) BatchOption {
	return func(c *batchConfig) { c.uploaderOpts = append(c.uploaderOpts, opts...) }
}
