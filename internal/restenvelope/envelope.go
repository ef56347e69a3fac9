// Package restenvelope implements the backend REST call used by the
// handshake, completion, and handleComplete phases: a single `rest`
// collaborator that encodes ambient context into query parameters,
// attaches a session token, and discriminates success from failure by
// the envelope's `result` field.
package restenvelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/xferio"
)

// Envelope is the backend response shape success/failure is
// discriminated on.
type Envelope struct {
	Result string         `json:"result"`
	Data   map[string]any `json:"data"`
}

// Succeeded reports whether the envelope's result marks the call as
// successful.
func (e Envelope) Succeeded() bool {
	return e.Result == "success" || e.Result == "redirect"
}

// ErrRequestFailed wraps a non-success envelope so callers can recover
// the original payload via errors.As.
type ErrRequestFailed struct {
	Envelope Envelope
}

func (e *ErrRequestFailed) Error() string {
	return fmt.Sprintf("restenvelope: request failed with result %q", e.Envelope.Result)
}

// Caller performs one backend REST call and returns its envelope.
type Caller interface {
	Call(ctx context.Context, endpoint, method string, params map[string]any, hctx hostctx.Context) (Envelope, error)
}

// Client is the default Caller, issuing requests through the
// environment adapter.
type Client struct {
	Adapter   xferio.Adapter
	BaseURL   string
	SessionFn func(ctx context.Context) (token string, ok bool)
}

// NewClient builds a REST caller rooted at baseURL.
func NewClient(adapter xferio.Adapter, baseURL string, sessionFn func(ctx context.Context) (string, bool)) *Client {
	return &Client{Adapter: adapter, BaseURL: baseURL, SessionFn: sessionFn}
}

// Call issues one REST request, encoding hctx's fields as
// `_ctx[<k>]=<urlencoded-v>` query parameters and attaching
// `Authorization: Session <token>` when a session token is present.
func (c *Client) Call(
	ctx context.Context,
	endpoint, method string,
	params map[string]any,
	hctx hostctx.Context,
) (env Envelope, err error) {
	query := url.Values{}
	keys := make([]string, 0, len(hctx))
	for k := range hctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query.Set(fmt.Sprintf("_ctx[%s]", k), fmt.Sprint(hctx[k]))
	}

	reqURL := c.BaseURL + "/" + endpoint
	if encoded := query.Encode(); encoded != "" {
		reqURL = reqURL + "?" + encoded
	}

	headers := http.Header{}
	if c.SessionFn != nil {
		if token, ok := c.SessionFn(ctx); ok && token != "" {
			headers.Set("Authorization", "Session "+token)
		}
	}

	var bodyBytes []byte
	if bodyBytes, err = json.Marshal(params); err != nil {
		return
	}
	headers.Set("Content-Type", "application/json")

	var resp *xferio.Response
	if resp, err = c.Adapter.HTTPRequest(ctx, reqURL, method, headers, bytes.NewReader(bodyBytes), int64(len(bodyBytes))); err != nil {
		return
	}

	if err = json.Unmarshal(resp.Bytes(), &env); err != nil {
		return
	}
	if !env.Succeeded() {
		err = &ErrRequestFailed{Envelope: env}
		return
	}
	return
}
