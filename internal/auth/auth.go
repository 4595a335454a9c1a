// Package auth verifies request authenticity. Two schemes share one
// pipeline: pre-shared-key request signing for service callers and bearer
// session/API-key tokens for end-user callers.
package auth

import (
	"context"
	"net/http"

	"github.com/user/oraclegate/internal/types"
)

// SignatureHeader carries the hex HMAC of the raw request body.
const SignatureHeader = "X-Signature"

// Authenticator verifies one authentication scheme against a request.
// body is the exact raw bytes of the request body.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request, body []byte) (*types.AuthContext, error)
}

// Selector picks the authenticator matching the request's credentials:
// a signature header selects signed-request auth, a bearer token selects
// token auth. Requests with neither are rejected.
type Selector struct {
	Signed Authenticator
	Bearer Authenticator
}

func (s *Selector) Authenticate(ctx context.Context, r *http.Request, body []byte) (*types.AuthContext, error) {
	if r.Header.Get(SignatureHeader) != "" {
		return s.Signed.Authenticate(ctx, r, body)
	}
	if bearerToken(r) != "" {
		return s.Bearer.Authenticate(ctx, r, body)
	}
	return nil, types.E(types.KindUnauthorized, "missing_credentials")
}
