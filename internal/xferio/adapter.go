// Package xferio is the environment adapter: it hides the differences
// between HTTP transports, XML parsing, and byte sources behind a small
// set of capabilities so the rest of the engine stays transport-neutral.
package xferio

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Response is the result of an HTTP request. The body is fully read
// into memory; callers that only need the status code never pay for
// decoding it.
type Response struct {
	Status int
	Header http.Header
	body   []byte
}

func (r *Response) Text() string { return string(r.body) }
func (r *Response) Bytes() []byte { return r.body }

func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// RandomAccess is an opaque, host-provided random-access byte source
// (e.g. a file handle) with a known size.
type RandomAccess interface {
	Size() int64
	Slice(ctx context.Context, start, end int64) ([]byte, error)
}

// XMLDoc exposes the one query the engine needs from a parsed XML body:
// the text content of the first element with a given tag name.
type XMLDoc interface {
	FirstText(tag string) (string, bool)
}

// Adapter is the full set of environment capabilities required by the
// upload engine.
type Adapter interface {
	HTTPRequest(ctx context.Context, url, method string, headers http.Header, body io.Reader, contentLength int64) (*Response, error)
	ParseXML(data []byte) (XMLDoc, error)
	ReadSlice(ctx context.Context, src RandomAccess, start, end int64) ([]byte, error)
	ReadStreamChunk(ctx context.Context, stream *StreamReader, targetSize int64) ([]byte, error)
}

// DefaultAdapter is the net/http + encoding/xml realization of Adapter.
// It is the only adapter shipped by this module; a host embedding the
// engine in a different transport (e.g. to inject retries, proxies, or
// a mocked XML parser in tests) can supply its own.
type DefaultAdapter struct {
	Client *http.Client
}

// NewDefaultAdapter constructs an adapter using the given HTTP client,
// falling back to http.DefaultClient when nil.
func NewDefaultAdapter(client *http.Client) *DefaultAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &DefaultAdapter{Client: client}
}

func (a *DefaultAdapter) HTTPRequest(
	ctx context.Context,
	url, method string,
	headers http.Header,
	body io.Reader,
	contentLength int64,
) (resp *Response, err error) {
	var req *http.Request
	if req, err = http.NewRequestWithContext(ctx, method, url, body); err != nil {
		return
	}
	if headers != nil {
		req.Header = headers.Clone()
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}

	var httpResp *http.Response
	if httpResp, err = a.Client.Do(req); err != nil {
		return
	}
	defer httpResp.Body.Close()

	var bodyBytes []byte
	if bodyBytes, err = io.ReadAll(httpResp.Body); err != nil {
		return
	}
	resp = &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		body:   bodyBytes,
	}
	return
}

// xmlDoc records the first text content seen for each tag, in document order.
type xmlDoc struct {
	firstText map[string]string
}

func (d xmlDoc) FirstText(tag string) (text string, ok bool) {
	text, ok = d.firstText[tag]
	return
}

func (a *DefaultAdapter) ParseXML(data []byte) (doc XMLDoc, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	d := xmlDoc{firstText: make(map[string]string)}

	var stack []string
	for {
		var tok xml.Token
		if tok, err = dec.Token(); err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			tag := stack[len(stack)-1]
			if _, exists := d.firstText[tag]; exists {
				continue
			}
			if text := strings.TrimSpace(string(t)); text != "" {
				d.firstText[tag] = text
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	doc = d
	return
}

func (a *DefaultAdapter) ReadSlice(ctx context.Context, src RandomAccess, start, end int64) ([]byte, error) {
	return src.Slice(ctx, start, end)
}

// StreamReader wraps a read-once byte source and remembers whether
// end-of-stream has already been observed, so ReadStreamChunk can
// return nil exactly once.
type StreamReader struct {
	r          io.Reader
	eosReached bool
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadStreamChunk returns up to targetSize bytes, combining as many
// underlying reads as necessary. It returns (nil, nil) at end-of-stream
// and on every call after that.
func (a *DefaultAdapter) ReadStreamChunk(ctx context.Context, stream *StreamReader, targetSize int64) (chunk []byte, err error) {
	if stream.eosReached {
		return nil, nil
	}
	if targetSize <= 0 {
		return nil, fmt.Errorf("xferio: targetSize must be positive, got %d", targetSize)
	}

	buf := make([]byte, 0, targetSize)
	for int64(len(buf)) < targetSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		scratch := make([]byte, targetSize-int64(len(buf)))
		n, readErr := stream.r.Read(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
		}
		if readErr != nil {
			if readErr == io.EOF {
				stream.eosReached = true
				break
			}
			return nil, readErr
		}
	}

	if len(buf) == 0 {
		stream.eosReached = true
		return nil, nil
	}
	return buf, nil
}
