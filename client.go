package fxfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/derektruong/fxfer-upload/internal/awssig"
	"github.com/derektruong/fxfer-upload/internal/blockqueue"
	"github.com/derektruong/fxfer-upload/internal/fileinput"
	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/iometer"
	"github.com/derektruong/fxfer-upload/internal/restenvelope"
	"github.com/derektruong/fxfer-upload/internal/xferio"
)

var errRetryable = errors.New("fxfer: retryable phase failure")

// validate is shared across every Upload call; go-playground/validator
// instances are safe for concurrent use once built.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Uploader negotiates protocol, chunks, dispatches, and finalizes the
// upload of a single file.
type Uploader interface {
	// Upload runs the full per-file state machine: normalization,
	// handshake, plan, block dispatch, and completion. method defaults
	// to POST when empty.
	Upload(
		ctx context.Context,
		endpoint string,
		input any,
		method string,
		params map[string]any,
		ambient hostctx.Context,
	) (restenvelope.Envelope, error)
}

type uploader struct {
	logger  logr.Logger
	adapter xferio.Adapter
	rest    restenvelope.Caller
	signer  *awssig.Client
	relay   awssig.Relay

	cfg *uploaderConfig
}

// NewUploader builds a per-file Uploader. adapter is the environment
// adapter (fetch/XML/byte-source capabilities); rest is the REST
// transport collaborator used for handshake and completion; relay is
// the AWS signing relay used only when the handshake selects the AWS
// protocol.
func NewUploader(
	logger logr.Logger,
	adapter xferio.Adapter,
	rest restenvelope.Caller,
	relay awssig.Relay,
	region string,
	options ...UploaderOption,
) Uploader {
	cfg := newUploaderConfig()
	cfg.logger = logger
	for _, opt := range options {
		opt(cfg)
	}
	return &uploader{
		logger:  cfg.logger.WithName("uploader"),
		adapter: adapter,
		rest:    rest,
		relay:   relay,
		signer:  awssig.NewClient(adapter, relay, region, nil),
		cfg:     cfg,
	}
}

func (u *uploader) Upload(
	ctx context.Context,
	endpoint string,
	input any,
	method string,
	params map[string]any,
	ambient hostctx.Context,
) (env restenvelope.Envelope, err error) {
	if method == "" {
		method = http.MethodPost
	}

	// An explicit params.filename/params.type overrides whatever name
	// or type the input itself carries (§4.3 Phase 1 resolution order).
	overrideFilename, _ := params["filename"].(string)
	overrideType, _ := params["type"].(string)
	descriptor, err := fileinput.Normalize(input, fileinput.Params{Filename: overrideFilename, Type: overrideType}, timeNow())
	if err != nil {
		if errors.Is(err, fileinput.ErrInvalidInput) {
			err = errors.Join(ErrInvalidInput, err)
		}
		return env, err
	}
	if err = validate.Struct(descriptor); err != nil {
		return env, errors.Join(ErrInvalidInput, err)
	}
	if err = u.cfg.fileRule.Check(descriptor); err != nil {
		return env, err
	}

	correlationID := uuid.NewString()
	logger := u.logger.WithValues("uploadId", correlationID, "name", descriptor.Name)

	info, err := u.handshake(ctx, logger, endpoint, method, descriptor, params, ambient)
	if err != nil {
		return env, err
	}

	plan, err := computePlan(descriptor.Size, info)
	if err != nil {
		return env, err
	}

	if info.IsAws() {
		if err = u.awsInitiate(ctx, logger, &plan, info, descriptor); err != nil {
			return env, err
		}
	}

	if err = u.dispatchBlocks(ctx, logger, &plan, info, descriptor); err != nil {
		return env, err
	}

	return u.complete(ctx, logger, plan, info, ambient)
}

// handshake negotiates the transport protocol. Per spec this class of
// failure (HandshakeFailed) is retried at the outer, handshake-level
// layer, solely at onError's direction; ProtocolUnrecognized is never
// retried.
func (u *uploader) handshake(
	ctx context.Context,
	logger logr.Logger,
	endpoint, method string,
	descriptor fileinput.Descriptor,
	params map[string]any,
	ambient hostctx.Context,
) (info UploadInfo, err error) {
	mergedParams := map[string]any{}
	for k, v := range params {
		mergedParams[k] = v
	}
	mergedParams["filename"] = descriptor.Name
	mergedParams["type"] = descriptor.Type
	mergedParams["lastModifiedSeconds"] = float64(descriptor.LastModified.UnixNano()) / 1e9
	if descriptor.Size != nil {
		mergedParams["size"] = *descriptor.Size
	} else {
		mergedParams["size"] = nil
	}

	attempt := 1
	run := func() (err error) {
		var env restenvelope.Envelope
		if env, err = u.rest.Call(ctx, endpoint, method, mergedParams, ambient); err != nil {
			err = errors.Join(&HandshakeFailedError{Cause: err}, errRetryable)
			return
		}
		if info, err = parseUploadInfo(env.Data); err != nil {
			// ProtocolUnrecognized is fatal, not retryable.
			return
		}
		return
	}

	if err = u.withOuterRetry(ctx, logger, PhaseInit, &attempt, run); err != nil {
		return UploadInfo{}, err
	}
	return info, nil
}

func parseUploadInfo(data map[string]any) (UploadInfo, error) {
	// AWS discriminator takes precedence when both shapes are present.
	if handle, ok := stringField(data, "Cloud_Aws_Bucket_Upload__"); ok && handle != "" {
		bucketData, _ := data["Bucket_Endpoint"].(map[string]any)
		host, _ := stringField(bucketData, "Host")
		name, _ := stringField(bucketData, "Name")
		region, _ := stringField(bucketData, "Region")
		key, _ := stringField(data, "Key")
		return UploadInfo{
			HandleID: handle,
			Bucket:   Bucket{Host: host, Name: name, Region: region},
			Key:      key,
		}, nil
	}

	if putURL, ok := stringField(data, "PUT"); ok && putURL != "" {
		completeEndpoint, _ := stringField(data, "Complete")
		info := UploadInfo{PutURL: putURL, CompleteEndpoint: completeEndpoint}
		if bs, ok := numberField(data, "Blocksize"); ok {
			v := int64(bs)
			info.BlockSize = &v
		}
		return info, nil
	}

	return UploadInfo{}, ErrProtocolUnrecognized
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// awsInitiate issues the S3 "initiate multipart upload" request and
// records the returned UploadId on plan.
func (u *uploader) awsInitiate(
	ctx context.Context,
	logger logr.Logger,
	plan *UploadPlan,
	info UploadInfo,
	descriptor fileinput.Descriptor,
) (err error) {
	attempt := 1
	run := func() (err error) {
		headers := http.Header{}
		headers.Set("Content-Type", descriptor.Type)
		headers.Set("X-Amz-Acl", "private")

		resp, doErr := u.signer.Do(ctx, info.HandleID, http.MethodPost, info.Bucket.Name, info.Key, info.Bucket.Host, "uploads=", headers, nil)
		if doErr != nil {
			var relayErr *awssig.RelayError
			if errors.As(doErr, &relayErr) {
				err = errors.Join(&SignerRelayFailedError{Phase: PhaseInit, Cause: relayErr}, errRetryable)
				return
			}
			err = errors.Join(&AwsInitiateFailedError{Cause: doErr}, errRetryable)
			return
		}
		if !resp.OK() {
			err = errors.Join(&AwsInitiateFailedError{Cause: awssig.ClassifyResponse(u.adapter, resp)}, errRetryable)
			return
		}

		doc, parseErr := u.adapter.ParseXML(resp.Bytes())
		if parseErr != nil {
			err = errors.Join(&AwsInitiateFailedError{Cause: parseErr}, errRetryable)
			return
		}
		uploadID, ok := doc.FirstText("UploadId")
		if !ok || uploadID == "" {
			err = errors.Join(&AwsInitiateFailedError{Cause: fmt.Errorf("response XML missing UploadId")}, errRetryable)
			return
		}
		plan.UploadID = uploadID
		return
	}

	return u.withOuterRetry(ctx, logger, PhaseInit, &attempt, run)
}

// dispatchBlocks runs Phase 4 for both random-access and streaming
// descriptors, bounded to blockqueue.Window concurrent blocks.
func (u *uploader) dispatchBlocks(
	ctx context.Context,
	logger logr.Logger,
	plan *UploadPlan,
	info UploadInfo,
	descriptor fileinput.Descriptor,
) error {
	tracker := newProgressTracker(plan.BlockCount, u.cfg.onProgress)

	var err error
	if descriptor.StreamSource != nil {
		err = u.dispatchStreaming(ctx, logger, plan, info, descriptor, tracker)
	} else {
		err = u.dispatchRandomAccess(ctx, logger, plan, info, descriptor, tracker)
	}
	if err != nil {
		return err
	}
	// the mandatory final 1.0 only ever reports a completed upload.
	tracker.finish()
	return nil
}

func (u *uploader) dispatchRandomAccess(
	ctx context.Context,
	logger logr.Logger,
	plan *UploadPlan,
	info UploadInfo,
	descriptor fileinput.Descriptor,
	tracker *progressTracker,
) error {
	size := int64(0)
	if descriptor.Size != nil {
		size = *descriptor.Size
	}
	dispatcher := blockqueue.New(ctx)

	count := 0
	if plan.BlockCount != nil {
		count = *plan.BlockCount
	}
	for i := 0; i < count; i++ {
		i := i
		start, end := blockRange(i, plan.BlockSize, size)
		if err := dispatcher.Go(func(ctx context.Context) error {
			data, readErr := u.readBlockWithRetry(ctx, logger, i, func() ([]byte, error) {
				return u.readRandomAccess(ctx, descriptor, start, end)
			})
			if readErr != nil {
				return readErr
			}
			if err := u.uploadBlock(ctx, logger, plan, info, descriptor, i, start, end, data, tracker); err != nil {
				return err
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return dispatcher.Wait()
}

func (u *uploader) readRandomAccess(ctx context.Context, descriptor fileinput.Descriptor, start, end int64) ([]byte, error) {
	if descriptor.Bytes != nil {
		return descriptor.Bytes[start:end], nil
	}
	return u.adapter.ReadSlice(ctx, descriptor.RandomAccess, start, end)
}

// readBlockWithRetry runs read and, on failure, wraps it as a
// StreamReadError and consults onError exactly like uploadBlock does for
// a failed send: resolving retries the read, rejecting or omitting
// onError fails the block (§7, StreamReadError is recoverable via
// onError({phase:"upload", blockNum})).
func (u *uploader) readBlockWithRetry(ctx context.Context, logger logr.Logger, blockNum int, read func() ([]byte, error)) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		data, err := read()
		if err == nil {
			return data, nil
		}
		readErr := &StreamReadError{BlockNum: blockNum, Cause: err}
		if u.cfg.onError == nil {
			return nil, readErr
		}
		bn := blockNum
		if resolveErr := u.cfg.onError(readErr, ErrorContext{Phase: PhaseUpload, Attempt: attempt, BlockNum: &bn}); resolveErr != nil {
			return nil, readErr
		}
		logger.Info("retrying block read", "blockNum", blockNum, "attempt", attempt+1)
	}
}

func (u *uploader) dispatchStreaming(
	ctx context.Context,
	logger logr.Logger,
	plan *UploadPlan,
	info UploadInfo,
	descriptor fileinput.Descriptor,
	tracker *progressTracker,
) error {
	var streamedBytes int64
	meteredSource := iometer.NewTransferReader(descriptor.StreamSource, &streamedBytes)
	stream := xferio.NewStreamReader(meteredSource)
	dispatcher := blockqueue.New(ctx)
	defer func() { logger.Info("stream upload finished", "bytesStreamed", meteredSource.TransferredSize()) }()

	index := 0
	offset := int64(0)
	for {
		if err := dispatcher.Acquire(ctx); err != nil {
			return err
		}

		chunk, err := u.readBlockWithRetry(ctx, logger, index, func() ([]byte, error) {
			return u.adapter.ReadStreamChunk(ctx, stream, plan.BlockSize)
		})
		if err != nil {
			dispatcher.Release()
			_ = dispatcher.Wait()
			return err
		}
		if chunk == nil {
			dispatcher.Release()
			break
		}

		i := index
		start := offset
		end := offset + int64(len(chunk))
		plan.PerBlock[i] = &BlockState{Status: BlockNotStarted}

		dispatcher.Release()
		if err := dispatcher.Go(func(ctx context.Context) error {
			return u.uploadBlock(ctx, logger, plan, info, descriptor, i, start, end, chunk, tracker)
		}); err != nil {
			return err
		}

		index++
		offset = end
	}

	if err := dispatcher.Wait(); err != nil {
		return err
	}

	frozen := index
	plan.BlockCount = &frozen
	tracker.freeze(frozen)
	return nil
}

// uploadBlock issues one block upload (PUT or AWS part) with
// onError-driven retry and no automatic backoff: the callback owns
// delay and attempt count.
func (u *uploader) uploadBlock(
	ctx context.Context,
	logger logr.Logger,
	plan *UploadPlan,
	info UploadInfo,
	descriptor fileinput.Descriptor,
	blockNum int,
	start, end int64,
	data []byte,
	tracker *progressTracker,
) error {
	multiBlock := plan.BlockCount == nil || *plan.BlockCount > 1

	for attempt := 1; ; attempt++ {
		var uploadErr error
		var etag string

		if u.cfg.rateLimiter != nil {
			if waitErr := u.cfg.rateLimiter.WaitN(ctx, len(data)); waitErr != nil {
				return waitErr
			}
		}

		if plan.Mode == ModeAws {
			etag, uploadErr = u.putAwsPart(ctx, info, plan.UploadID, blockNum, data)
		} else {
			uploadErr = u.putDirectBlock(ctx, info, descriptor, blockNum, start, end, data, multiBlock)
		}

		if uploadErr == nil {
			plan.PerBlock[blockNum] = &BlockState{Status: BlockDone, ETag: etag}
			tracker.blockDone()
			return nil
		}

		if u.cfg.onError == nil {
			return uploadErr
		}
		bn := blockNum
		resolveErr := u.cfg.onError(uploadErr, ErrorContext{Phase: PhaseUpload, Attempt: attempt, BlockNum: &bn})
		if resolveErr != nil {
			return uploadErr
		}
		logger.Info("retrying block upload", "blockNum", blockNum, "attempt", attempt+1)
	}
}

func (u *uploader) putDirectBlock(
	ctx context.Context,
	info UploadInfo,
	descriptor fileinput.Descriptor,
	blockNum int,
	start, end int64,
	data []byte,
	multiBlock bool,
) error {
	headers := http.Header{}
	headers.Set("Content-Type", descriptor.Type)
	if multiBlock {
		headers.Set("Content-Range", fmt.Sprintf("bytes %d-%d/*", start, end-1))
	}

	resp, err := u.adapter.HTTPRequest(ctx, info.PutURL, http.MethodPut, headers, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &BlockUploadHTTPError{BlockNum: blockNum, Status: 0, StatusText: err.Error()}
	}
	if !resp.OK() {
		return &BlockUploadHTTPError{BlockNum: blockNum, Status: resp.Status, StatusText: resp.Text()}
	}
	return nil
}

func (u *uploader) putAwsPart(ctx context.Context, info UploadInfo, uploadID string, blockNum int, data []byte) (etag string, err error) {
	query := fmt.Sprintf("partNumber=%d&uploadId=%s", blockNum+1, uploadID)

	resp, doErr := u.signer.Do(ctx, info.HandleID, http.MethodPut, info.Bucket.Name, info.Key, info.Bucket.Host, query, nil, data)
	if doErr != nil {
		var relayErr *awssig.RelayError
		if errors.As(doErr, &relayErr) {
			return "", &SignerRelayFailedError{Phase: PhaseUpload, Cause: relayErr}
		}
		return "", &BlockUploadHTTPError{BlockNum: blockNum, Status: 0, StatusText: doErr.Error()}
	}
	if !resp.OK() {
		return "", &BlockUploadHTTPError{BlockNum: blockNum, Status: resp.Status, StatusText: awssig.ClassifyResponse(u.adapter, resp).Error()}
	}
	return resp.Header.Get("ETag"), nil
}

// complete finalizes the upload per the selected protocol.
func (u *uploader) complete(
	ctx context.Context,
	logger logr.Logger,
	plan UploadPlan,
	info UploadInfo,
	ambient hostctx.Context,
) (env restenvelope.Envelope, err error) {
	if info.IsAws() {
		return u.completeAws(ctx, logger, plan, info, ambient)
	}
	return u.completePut(ctx, logger, info, ambient)
}

func (u *uploader) completePut(
	ctx context.Context,
	logger logr.Logger,
	info UploadInfo,
	ambient hostctx.Context,
) (env restenvelope.Envelope, err error) {
	attempt := 1
	run := func() (err error) {
		if env, err = u.rest.Call(ctx, info.CompleteEndpoint, http.MethodPost, map[string]any{}, ambient); err != nil {
			err = errors.Join(&CompleteFailedError{Cause: err}, errRetryable)
		}
		return
	}
	if err = u.withOuterRetry(ctx, logger, PhaseComplete, &attempt, run); err != nil {
		return restenvelope.Envelope{}, err
	}
	return env, nil
}

func (u *uploader) completeAws(
	ctx context.Context,
	logger logr.Logger,
	plan UploadPlan,
	info UploadInfo,
	ambient hostctx.Context,
) (env restenvelope.Envelope, err error) {
	xmlBody := buildCompletionXML(plan)

	attempt := 1
	completeRun := func() (err error) {
		query := fmt.Sprintf("uploadId=%s", plan.UploadID)
		resp, doErr := u.signer.Do(ctx, info.HandleID, http.MethodPost, info.Bucket.Name, info.Key, info.Bucket.Host, query, nil, xmlBody)
		if doErr != nil {
			var relayErr *awssig.RelayError
			if errors.As(doErr, &relayErr) {
				err = errors.Join(&SignerRelayFailedError{Phase: PhaseComplete, Cause: relayErr}, errRetryable)
				return
			}
			err = errors.Join(&CompleteFailedError{Cause: doErr}, errRetryable)
			return
		}
		if !resp.OK() {
			classified := awssig.ClassifyResponse(u.adapter, resp)
			if awssig.IsErrorCode(classified, "NoSuchUpload") {
				err = &CompleteFailedError{Cause: classified}
				return
			}
			err = errors.Join(&CompleteFailedError{Cause: classified}, errRetryable)
		}
		return
	}
	if err = u.withOuterRetry(ctx, logger, PhaseComplete, &attempt, completeRun); err != nil {
		return restenvelope.Envelope{}, err
	}

	handleAttempt := 1
	handleEndpoint := fmt.Sprintf("Cloud/Aws/Bucket/Upload/%s:handleComplete", info.HandleID)
	handleRun := func() (err error) {
		if env, err = u.rest.Call(ctx, handleEndpoint, http.MethodPost, map[string]any{}, ambient); err != nil {
			err = errors.Join(&HandleCompleteFailedError{Cause: err}, errRetryable)
		}
		return
	}
	if err = u.withOuterRetry(ctx, logger, PhaseHandleComplete, &handleAttempt, handleRun); err != nil {
		return restenvelope.Envelope{}, err
	}
	return env, nil
}

func buildCompletionXML(plan UploadPlan) []byte {
	parts := lo.Filter(sortedBlockNums(plan.PerBlock), func(i int, _ int) bool {
		return plan.PerBlock[i].Status == BlockDone
	})

	var buf bytes.Buffer
	buf.WriteString("<CompleteMultipartUpload>")
	for _, i := range parts {
		fmt.Fprintf(&buf, "<Part><PartNumber>%d</PartNumber><ETag>%s</ETag></Part>", i+1, plan.PerBlock[i].ETag)
	}
	buf.WriteString("</CompleteMultipartUpload>")
	return buf.Bytes()
}

func sortedBlockNums(blocks map[int]*BlockState) []int {
	nums := make([]int, 0, len(blocks))
	for i := range blocks {
		nums = append(nums, i)
	}
	// ascending part-number order is mandatory for the completion XML.
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}
	return nums
}

// withOuterRetry runs run and, on a retryable failure (one joined with
// errRetryable), retries solely at onError's direction: resolving
// (returning nil) retries immediately, and rejecting or omitting
// onError fails the upload. There is no automatic backoff here — same
// as uploadBlock, the callback owns delay and attempt count. A
// non-retryable failure (e.g. ErrProtocolUnrecognized) is returned
// immediately without ever reaching onError, since there is nothing to
// retry. This covers phases (init, complete, handleComplete) that have
// no per-block callback of their own.
func (u *uploader) withOuterRetry(ctx context.Context, logger logr.Logger, phase Phase, attempt *int, run func() error) error {
	for {
		err := run()
		if err == nil {
			return nil
		}
		if u.cfg.disabledRetry || !errors.Is(err, errRetryable) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
		if u.cfg.onError == nil {
			return err
		}
		if resolveErr := u.cfg.onError(err, ErrorContext{Phase: phase, Attempt: *attempt}); resolveErr != nil {
			return err
		}
		logger.Info("retrying phase", "phase", phase, "attempt", *attempt+1)
		*attempt++
	}
}

