package awssig

import (
	"errors"
	"fmt"

	smithy "github.com/aws/smithy-go"

	"github.com/derektruong/fxfer-upload/internal/xferio"
)

// ClassifyResponse turns a non-2xx S3 response into a smithy.APIError
// when its body is a recognizable S3 error document
// (`<Error><Code>...</Code><Message>...</Message></Error>`), so callers
// can classify failures the same way the AWS SDK's own errors.As
// idiom does (e.g. distinguishing NoSuchUpload from a transient 5xx)
// without depending on the SDK's HTTP client.
func ClassifyResponse(adapter xferio.Adapter, resp *xferio.Response) error {
	doc, err := adapter.ParseXML(resp.Bytes())
	if err != nil {
		return fmt.Errorf("awssig: request failed with status %d", resp.Status)
	}
	code, hasCode := doc.FirstText("Code")
	if !hasCode || code == "" {
		return fmt.Errorf("awssig: request failed with status %d", resp.Status)
	}
	message, _ := doc.FirstText("Message")
	fault := smithy.FaultServer
	if resp.Status >= 400 && resp.Status < 500 {
		fault = smithy.FaultClient
	}
	return &smithy.GenericAPIError{Code: code, Message: message, Fault: fault}
}

// IsErrorCode reports whether err (or anything it wraps) is a smithy
// API error with the given code, e.g. "NoSuchUpload".
func IsErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
