package iometer

import (
	"io"
	"sync/atomic"
)

// TransferReader wraps an io.Reader and counts the number of bytes read
// from it.
type TransferReader struct {
	reader io.Reader

	// transferredSize is a pointer to an int64 that stores the number of
	// bytes transferred
	transferredSize *int64

	// closed is a flag that indicates if the TransferReader is closed
	closed bool
}

// NewTransferReader constructs a new TransferReader.
func NewTransferReader(reader io.Reader, transferredSize *int64) (mr *TransferReader) {
	mr = &TransferReader{
		reader:          reader,
		transferredSize: transferredSize,
	}
	return
}

// Read reads from the underlying reader and increments the counter.
// Byte-rate limiting, when configured, is applied uniformly at the
// block-send layer (options.go's WithRateLimit) rather than here, so
// it covers both streamed and random-access sources the same way.
func (tr *TransferReader) Read(p []byte) (n int, err error) {
	if n, err = tr.reader.Read(p); err != nil {
		return
	}
	if n > 0 && tr.transferredSize != nil {
		atomic.AddInt64(tr.transferredSize, int64(n))
	}
	return
}

// Close closes the underlying io.Reader if it implements the
// io.Closer interface.
func (tr *TransferReader) Close() (err error) {
	if tr.closed {
		return
	}
	if closer, ok := tr.reader.(io.Closer); ok {
		err = closer.Close()
	}
	tr.closed = true
	return
}

// TransferredSize returns the number of bytes transferred.
func (tr *TransferReader) TransferredSize() int64 {
	return atomic.LoadInt64(tr.transferredSize)
}
