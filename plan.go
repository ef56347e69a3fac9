package fxfer

import (
	"fmt"
	"math"
)

const (
	mib = 1 << 20

	awsMinBlockSize   = 5 * mib
	unknownSizeBlock  = 526 * mib
	awsMaxParts       = 10000
)

// Mode is the transport strategy selected by the handshake response.
type Mode string

const (
	ModePut Mode = "PUT"
	ModeAws Mode = "AWS"
)

// Bucket identifies an S3-compatible destination.
type Bucket struct {
	Host   string
	Name   string
	Region string
}

// UploadInfo is the handshake response's protocol selection, a tagged
// union between the PUT and AWS shapes. The AWS discriminator (HandleID
// non-empty) takes precedence when both are present.
type UploadInfo struct {
	// PUT shape.
	PutURL           string
	CompleteEndpoint string
	BlockSize        *int64

	// AWS shape.
	HandleID string
	Bucket   Bucket
	Key      string
}

// IsAws reports whether the handshake response selected the AWS
// multipart protocol; it is checked before the PUT shape per the
// discriminator-precedence rule.
func (i UploadInfo) IsAws() bool { return i.HandleID != "" }

// IsPut reports whether the handshake response selected the direct PUT
// protocol.
func (i UploadInfo) IsPut() bool { return !i.IsAws() && i.PutURL != "" }

// BlockStatus is the lifecycle of one block within an UploadPlan.
type BlockStatus int

const (
	BlockNotStarted BlockStatus = iota
	BlockInFlight
	BlockDone
)

// BlockState tracks one block's progress. ETag is only ever populated
// in AWS mode.
type BlockState struct {
	Status BlockStatus
	ETag   string
}

// UploadPlan is derived from a FileDescriptor and an UploadInfo: the
// chunking strategy and per-block bookkeeping for one file.
type UploadPlan struct {
	Mode      Mode
	BlockSize int64
	// BlockCount is nil while streaming of unknown size; it is frozen
	// once end-of-stream is observed.
	BlockCount *int

	UploadID string // AWS only

	PerBlock map[int]*BlockState
}

// computePlan derives the chunking strategy from the descriptor's size
// and the handshake's UploadInfo, per §4.3 Phase 3. It does not issue
// the AWS initiate request; callers do that separately and populate
// UploadID afterward.
func computePlan(size *int64, info UploadInfo) (UploadPlan, error) {
	if info.IsAws() {
		return computeAwsPlan(size)
	}
	if info.IsPut() {
		return computePutPlan(size, info.BlockSize)
	}
	return UploadPlan{}, ErrProtocolUnrecognized
}

func computeAwsPlan(size *int64) (UploadPlan, error) {
	if size == nil {
		return UploadPlan{Mode: ModeAws, BlockSize: unknownSizeBlock, PerBlock: map[int]*BlockState{}}, nil
	}
	blockSize := maxInt64(ceilDiv(*size, awsMaxParts), awsMinBlockSize)
	blockCount := int(ceilDiv(*size, blockSize))
	if blockCount == 0 {
		blockCount = 1
	}
	return UploadPlan{
		Mode:       ModeAws,
		BlockSize:  blockSize,
		BlockCount: &blockCount,
		PerBlock:   initBlocks(blockCount),
	}, nil
}

func computePutPlan(size *int64, serverBlockSize *int64) (UploadPlan, error) {
	if serverBlockSize == nil {
		if size == nil {
			return UploadPlan{}, fmt.Errorf("fxfer: PUT protocol requires a known size when the server supplies no blockSize")
		}
		blockCount := 1
		return UploadPlan{
			Mode:       ModePut,
			BlockSize:  *size,
			BlockCount: &blockCount,
			PerBlock:   initBlocks(blockCount),
		}, nil
	}
	if size == nil {
		return UploadPlan{Mode: ModePut, BlockSize: unknownSizeBlock, PerBlock: map[int]*BlockState{}}, nil
	}
	blockSize := *serverBlockSize
	blockCount := int(ceilDiv(*size, blockSize))
	if blockCount == 0 {
		blockCount = 1
	}
	return UploadPlan{
		Mode:       ModePut,
		BlockSize:  blockSize,
		BlockCount: &blockCount,
		PerBlock:   initBlocks(blockCount),
	}, nil
}

func initBlocks(count int) map[int]*BlockState {
	blocks := make(map[int]*BlockState, count)
	for i := 0; i < count; i++ {
		blocks[i] = &BlockState{Status: BlockNotStarted}
	}
	return blocks
}

// blockRange returns the half-open byte range [start, end) for block i
// given size and blockSize, clamped to size.
func blockRange(i int, blockSize, size int64) (start, end int64) {
	start = int64(i) * blockSize
	end = start + blockSize
	if end > size {
		end = size
	}
	return
}

func ceilDiv(a, b int64) int64 {
	return int64(math.Ceil(float64(a) / float64(b)))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
