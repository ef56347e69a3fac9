package fxfer

import (
	"errors"
	"fmt"
)

// Phase identifies which stage of the per-file upload state machine an
// error or retry callback relates to.
type Phase string

const (
	PhaseInit           Phase = "init"
	PhaseUpload         Phase = "upload"
	PhaseComplete       Phase = "complete"
	PhaseHandleComplete Phase = "handleComplete"
	PhaseFile           Phase = "file"
)

// ErrorContext is passed to onError alongside the triggering error.
// BlockNum is only populated for upload-phase failures.
type ErrorContext struct {
	Phase     Phase
	Attempt   int
	BlockNum  *int
	FileIndex *int
}

// ErrInvalidInput is returned by the normalizer when it is given an
// input shape it does not recognize. It is never passed to onError:
// there is no operation to retry.
var ErrInvalidInput = errors.New("fxfer: unrecognized upload input")

// ErrProtocolUnrecognized is returned when a handshake response's data
// carries neither a PUT nor an AWS discriminator. Not retried.
var ErrProtocolUnrecognized = errors.New("fxfer: handshake response matched neither PUT nor AWS protocol shape")

// HandshakeFailedError wraps a REST or transport failure encountered
// while negotiating the upload protocol (phase init).
type HandshakeFailedError struct{ Cause error }

func (e *HandshakeFailedError) Error() string { return fmt.Sprintf("fxfer: handshake failed: %v", e.Cause) }
func (e *HandshakeFailedError) Unwrap() error  { return e.Cause }

// AwsInitiateFailedError wraps a failure of the S3 "initiate multipart
// upload" call, including a response XML missing UploadId.
type AwsInitiateFailedError struct{ Cause error }

func (e *AwsInitiateFailedError) Error() string {
	return fmt.Sprintf("fxfer: aws multipart initiate failed: %v", e.Cause)
}
func (e *AwsInitiateFailedError) Unwrap() error { return e.Cause }

// BlockUploadHTTPError records a non-2xx response to a block PUT,
// whether against the direct putUrl or an S3 part URL.
type BlockUploadHTTPError struct {
	BlockNum   int
	Status     int
	StatusText string
}

func (e *BlockUploadHTTPError) Error() string {
	return fmt.Sprintf("fxfer: block %d upload failed: %d %s", e.BlockNum, e.Status, e.StatusText)
}

// SignerRelayFailedError wraps a failure of the signV4 relay call,
// including a response missing an authorization value. It surfaces
// under whichever phase triggered it (init, upload or complete).
type SignerRelayFailedError struct {
	Phase Phase
	Cause error
}

func (e *SignerRelayFailedError) Error() string {
	return fmt.Sprintf("fxfer: signer relay failed during %s: %v", e.Phase, e.Cause)
}
func (e *SignerRelayFailedError) Unwrap() error { return e.Cause }

// CompleteFailedError wraps a failure of the PUT-protocol completion
// call or the AWS completion XML request.
type CompleteFailedError struct{ Cause error }

func (e *CompleteFailedError) Error() string {
	return fmt.Sprintf("fxfer: completion failed: %v", e.Cause)
}
func (e *CompleteFailedError) Unwrap() error { return e.Cause }

// HandleCompleteFailedError wraps a failure of the AWS
// post-completion handleComplete call.
type HandleCompleteFailedError struct{ Cause error }

func (e *HandleCompleteFailedError) Error() string {
	return fmt.Sprintf("fxfer: aws handleComplete failed: %v", e.Cause)
}
func (e *HandleCompleteFailedError) Unwrap() error { return e.Cause }

// StreamReadError wraps a failure raised by the environment adapter's
// stream reader. BlockNum is the index the read would have produced.
type StreamReadError struct {
	BlockNum int
	Cause    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("fxfer: stream read failed at block %d: %v", e.BlockNum, e.Cause)
}
func (e *StreamReadError) Unwrap() error { return e.Cause }

// BatchError aggregates per-file results when one or more files in a
// batch fail. Results[i] is either a successful Envelope or the error
// for that file, in input order.
type BatchError struct {
	Errors  []error
	Results []BatchFileResult
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("fxfer: %d of %d files failed", len(e.Errors), len(e.Results))
}
