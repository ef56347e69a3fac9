package main

import (
	"context"
	"fmt"

	"github.com/derektruong/fxfer-upload/internal/awssig"
	"github.com/derektruong/fxfer-upload/internal/hostctx"
	"github.com/derektruong/fxfer-upload/internal/restenvelope"
)

// restRelay implements awssig.Relay over the same REST caller used for
// the handshake and completion phases: signV4 is just another backend
// endpoint, scoped to the upload handle.
type restRelay struct {
	rest restenvelope.Caller
}

func newRestRelay(rest restenvelope.Caller) *restRelay {
	return &restRelay{rest: rest}
}

func (r *restRelay) SignV4(ctx context.Context, handleID string, canonical string) (awssig.RelayResult, error) {
	endpoint := fmt.Sprintf("Cloud/Aws/Bucket/Upload/%s:signV4", handleID)
	env, err := r.rest.Call(ctx, endpoint, "POST", map[string]any{"headers": canonical}, hostctx.Context{})
	if err != nil {
		return awssig.RelayResult{}, err
	}
	authorization, ok := env.Data["authorization"].(string)
	if !ok || authorization == "" {
		return awssig.RelayResult{}, awssig.ErrMissingAuthorization
	}
	return awssig.RelayResult{Authorization: authorization}, nil
}
