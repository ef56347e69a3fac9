// Package awssig builds the client-side half of an AWS SigV4 request:
// the canonical string the backend signs, never the signature itself.
// The backend holds the credentials; this package only ever produces
// the string to be signed and carries the returned Authorization
// header back onto the outgoing S3 request.
package awssig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// EmptyBodySHA256 is the hex SHA-256 digest of a zero-length body, used
// whenever the request carries no payload.
const EmptyBodySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const algorithm = "AWS4-HMAC-SHA256"

// dateTimeFormat matches YYYYMMDDThhmmssZ.
const dateTimeFormat = "20060102T150405Z"

// CanonicalRequest holds everything needed to build the canonical
// string for a single S3 request.
type CanonicalRequest struct {
	Method  string
	Bucket  string
	Key     string
	Region  string
	Host    string
	Query   string
	Headers http.Header
	Body    []byte
	Now     func() (timestamp string, dateStamp string)
}

// BuildCanonicalString assembles the newline-joined canonical string
// described by the signer relay contract: ten fixed lines plus one line
// per x- header (so twelve lines with two x- headers). It also
// returns the timestamp so the caller can set X-Amz-Date identically.
func BuildCanonicalString(r CanonicalRequest) (canonical string, timestamp string) {
	var dateStamp string
	if r.Now != nil {
		timestamp, dateStamp = r.Now()
	}

	scope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, r.Region)
	path := fmt.Sprintf("/%s/%s", r.Bucket, r.Key)

	var xHeaderNames []string
	xHeaderLines := map[string]string{}
	for name := range r.Headers {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-") {
			xHeaderNames = append(xHeaderNames, lower)
			xHeaderLines[lower] = fmt.Sprintf("%s:%s", lower, r.Headers.Get(name))
		}
	}
	sort.Strings(xHeaderNames)

	var headerLines []string
	headerLines = append(headerLines, fmt.Sprintf("host:%s", r.Host))
	for _, name := range xHeaderNames {
		headerLines = append(headerLines, xHeaderLines[name])
	}

	signedHeaders := append([]string{"host"}, xHeaderNames...)

	bodyHash := EmptyBodySHA256
	if len(r.Body) > 0 {
		sum := sha256.Sum256(r.Body)
		bodyHash = hex.EncodeToString(sum[:])
	}

	lines := []string{
		algorithm,
		timestamp,
		scope,
		r.Method,
		path,
		r.Query,
		headerLines[0],
	}
	lines = append(lines, headerLines[1:]...)
	lines = append(lines,
		"",
		strings.Join(signedHeaders, ";"),
		bodyHash,
	)
	canonical = strings.Join(lines, "\n")
	return
}

// RelayResult is the backend's response to a signV4 relay call.
type RelayResult struct {
	Authorization string
}

// Relay is the backend signing endpoint: it exchanges a canonical
// string for a fully-formed Authorization header value. The relay
// endpoint shape is `Cloud/Aws/Bucket/Upload/<handleId>:signV4`.
type Relay interface {
	SignV4(ctx context.Context, handleID string, canonical string) (RelayResult, error)
}

// ErrMissingAuthorization is returned when the relay responds without
// an authorization value.
var ErrMissingAuthorization = fmt.Errorf("awssig: relay response missing authorization")
