// internal/auth/signed.go
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/user/oraclegate/internal/types"
)

// SignedRequest authenticates service callers by an HMAC-SHA256 signature
// of the exact request body, compared in constant time.
type SignedRequest struct {
	secret []byte
}

// NewSignedRequest creates a signed-request authenticator with the given
// shared secret. An empty secret leaves the scheme unconfigured and all
// signed requests are rejected.
func NewSignedRequest(secret string) *SignedRequest {
	return &SignedRequest{secret: []byte(secret)}
}

func (s *SignedRequest) Authenticate(_ context.Context, r *http.Request, body []byte) (*types.AuthContext, error) {
	if len(s.secret) == 0 {
		return nil, types.E(types.KindUnauthorized, "server_not_configured")
	}

	supplied := r.Header.Get(SignatureHeader)
	if supplied == "" {
		return nil, types.E(types.KindUnauthorized, "missing_signature")
	}

	want := Sign(s.secret, body)
	if !hmac.Equal([]byte(supplied), []byte(want)) {
		return nil, types.E(types.KindUnauthorized, "invalid_signature")
	}

	caller := r.Header.Get("X-Caller-ID")
	if caller == "" {
		caller = "service"
	}
	return &types.AuthContext{
		CallerID:    caller,
		OrgID:       r.Header.Get("X-Org-ID"),
		Scheme:      types.SchemeService,
		Permissions: map[string]bool{"*": true},
	}, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
