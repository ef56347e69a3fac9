// Package fileinput normalizes the set of shapes a caller may pass as
// upload input into a single FileDescriptor, per the upload engine's
// input-normalization phase. It is the only boundary component
// permitted to inspect host-specific input types.
package fileinput

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrInvalidInput is returned when the input does not match any
// recognized FileInput shape.
var ErrInvalidInput = errors.New("fileinput: unrecognized input shape")

const (
	defaultBinaryType = "application/octet-stream"
	defaultBinaryExt  = ".bin"
	defaultTextType   = "text/plain"
	defaultTextExt    = ".txt"
)

// RandomAccess is an opaque, host-provided random-access byte source,
// such as a file handle. It mirrors xferio.RandomAccess so callers
// don't need to import the adapter package just to build an input.
type RandomAccess interface {
	Size() int64
	Slice(ctx context.Context, start, end int64) ([]byte, error)
}

// FileLike represents a contiguous in-memory file-like object, the Go
// analogue of a plain object carrying { name?, size?, type?, content,
// lastModified? } fields.
type FileLike struct {
	Name         string
	Type         string
	Content      []byte
	LastModified time.Time
}

// RandomAccessInput wraps a RandomAccess source with its descriptive
// metadata.
type RandomAccessInput struct {
	Name         string
	Type         string
	Size         int64
	LastModified time.Time
	Source       RandomAccess
}

// StreamInput wraps a read-once ordered byte source whose total length
// is not known ahead of time.
type StreamInput struct {
	Name         string
	Type         string
	LastModified time.Time
	Reader       Stream
}

// Stream is a read-once ordered byte source.
type Stream interface {
	Read(p []byte) (n int, err error)
}

// Descriptor is the normalized, protocol-agnostic representation of an
// upload's input. Exactly one of Bytes, RandomAccess, or StreamSource
// is set.
type Descriptor struct {
	Name         string `validate:"required"`
	Type         string `validate:"required"`
	LastModified time.Time

	Bytes        []byte
	RandomAccess RandomAccess
	StreamSource Stream

	// Size is nil when streaming with unknown total length.
	Size *int64 `validate:"omitempty,min=0"`
}

// Params carries the explicit overrides a caller may supply; they take
// priority over anything the input itself contributes.
type Params struct {
	Filename string
	Type     string
}

// Normalize converts any recognized input shape into a Descriptor. now
// is injected so callers (and tests) control the "missing lastModified
// defaults to now" rule deterministically.
func Normalize(input any, params Params, now time.Time) (d Descriptor, err error) {
	switch v := input.(type) {
	case []byte:
		d = Descriptor{
			Name: defaultBinaryExt, Type: defaultBinaryType,
			Bytes: v, Size: sizeOf(int64(len(v))),
		}
	case string:
		content := []byte(v)
		d = Descriptor{
			Name: defaultTextExt, Type: defaultTextType,
			Bytes: content, Size: sizeOf(int64(len(content))),
		}
	case FileLike:
		d = Descriptor{
			Name: firstNonEmpty(v.Name, defaultBinaryExt),
			Type: firstNonEmpty(v.Type, defaultBinaryType),
			Bytes: v.Content, Size: sizeOf(int64(len(v.Content))),
			LastModified: v.LastModified,
		}
	case *RandomAccessInput:
		d = Descriptor{
			Name: firstNonEmpty(v.Name, defaultBinaryExt),
			Type: firstNonEmpty(v.Type, defaultBinaryType),
			RandomAccess: v.Source, Size: sizeOf(v.Size),
			LastModified: v.LastModified,
		}
	case RandomAccessInput:
		d = Descriptor{
			Name: firstNonEmpty(v.Name, defaultBinaryExt),
			Type: firstNonEmpty(v.Type, defaultBinaryType),
			RandomAccess: v.Source, Size: sizeOf(v.Size),
			LastModified: v.LastModified,
		}
	case *StreamInput:
		d = Descriptor{
			Name: firstNonEmpty(v.Name, defaultBinaryExt),
			Type: firstNonEmpty(v.Type, defaultBinaryType),
			StreamSource: v.Reader, Size: nil,
			LastModified: v.LastModified,
		}
	case StreamInput:
		d = Descriptor{
			Name: firstNonEmpty(v.Name, defaultBinaryExt),
			Type: firstNonEmpty(v.Type, defaultBinaryType),
			StreamSource: v.Reader, Size: nil,
			LastModified: v.LastModified,
		}
	case *os.File:
		d, err = normalizeOSFile(v)
	default:
		err = ErrInvalidInput
		return
	}
	if err != nil {
		return
	}

	// explicit params override anything the input contributed.
	if params.Filename != "" {
		d.Name = params.Filename
	}
	if params.Type != "" {
		d.Type = params.Type
	}
	if d.LastModified.IsZero() {
		d.LastModified = now
	}
	return
}

func normalizeOSFile(f *os.File) (d Descriptor, err error) {
	var stat os.FileInfo
	if stat, err = f.Stat(); err != nil {
		return
	}
	size := stat.Size()
	d = Descriptor{
		Name:         stat.Name(),
		Type:         defaultBinaryType,
		RandomAccess: osFileRandomAccess{f: f},
		Size:         &size,
		LastModified: stat.ModTime(),
	}
	return
}

// osFileRandomAccess adapts *os.File to the RandomAccess contract.
type osFileRandomAccess struct{ f *os.File }

func (o osFileRandomAccess) Size() int64 {
	stat, err := o.f.Stat()
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (o osFileRandomAccess) Slice(_ context.Context, start, end int64) ([]byte, error) {
	buf := make([]byte, end-start)
	if _, err := o.f.ReadAt(buf, start); err != nil {
		return nil, err
	}
	return buf, nil
}

func sizeOf(n int64) *int64 { return &n }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
