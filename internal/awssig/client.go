package awssig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/derektruong/fxfer-upload/internal/xferio"
)

// RelayError wraps any failure from the signing relay call itself
// (transport failure or a response missing an authorization value),
// as distinct from a failure of the subsequently-signed S3 request.
// Callers can recover it with errors.As to classify the failure.
type RelayError struct {
	HandleID string
	Cause    error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("awssig: signer relay failed for handle %q: %v", e.HandleID, e.Cause)
}
func (e *RelayError) Unwrap() error { return e.Cause }

func ErrSignerRelayFailed(handleID string, cause error) error {
	return &RelayError{HandleID: handleID, Cause: cause}
}

// Client issues SigV4-signed S3 requests through a backend relay: it
// builds the canonical string, exchanges it for an Authorization
// header via Relay, then performs the actual HTTP request through the
// environment adapter.
type Client struct {
	Adapter xferio.Adapter
	Relay   Relay
	Region  string
	Now     func() time.Time
}

// NewClient constructs a signing client. now defaults to time.Now.
func NewClient(adapter xferio.Adapter, relay Relay, region string, now func() time.Time) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{Adapter: adapter, Relay: relay, Region: region, Now: now}
}

// Do signs and issues an S3 request. handleID identifies the relay
// session (`Cloud/Aws/Bucket/Upload/<handleId>:signV4`); bucket/key/host
// identify the S3 object; headers are the caller's additional headers,
// which will be augmented with X-Amz-Content-Sha256 and X-Amz-Date
// before signing.
func (c *Client) Do(
	ctx context.Context,
	handleID, method, bucket, key, host, query string,
	headers http.Header,
	body []byte,
) (*xferio.Response, error) {
	if headers == nil {
		headers = http.Header{}
	}

	bodyHash := EmptyBodySHA256
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		bodyHash = hex.EncodeToString(sum[:])
	}

	// both the timestamp used in the canonical string and the one set
	// on X-Amz-Date must come from the same instant.
	instant := c.Now().UTC()
	timestamp := instant.Format(dateTimeFormat)

	signingHeaders := headers.Clone()
	signingHeaders.Set("X-Amz-Content-Sha256", bodyHash)
	signingHeaders.Set("X-Amz-Date", timestamp)

	canonical, _ := BuildCanonicalString(CanonicalRequest{
		Method: method, Bucket: bucket, Key: key, Region: c.Region,
		Host: host, Query: query, Headers: signingHeaders, Body: body,
		Now: func() (string, string) { return timestamp, timestamp[:8] },
	})

	relayResult, err := c.Relay.SignV4(ctx, handleID, canonical)
	if err != nil {
		return nil, ErrSignerRelayFailed(handleID, err)
	}
	if relayResult.Authorization == "" {
		return nil, ErrSignerRelayFailed(handleID, ErrMissingAuthorization)
	}
	signingHeaders.Set("Authorization", relayResult.Authorization)

	url := fmt.Sprintf("https://%s/%s/%s", host, bucket, key)
	if query != "" {
		url = url + "?" + query
	}

	if len(body) == 0 {
		return c.Adapter.HTTPRequest(ctx, url, method, signingHeaders, nil, 0)
	}
	return c.Adapter.HTTPRequest(ctx, url, method, signingHeaders, bytes.NewReader(body), int64(len(body)))
}
