// internal/auth/bearer.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/user/oraclegate/internal/types"
)

// TokenVerifier validates a bearer token and resolves the caller identity.
// Implementations may call out to an external identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*types.AuthContext, error)
}

// BearerToken authenticates end-user callers by bearer token.
type BearerToken struct {
	verifier TokenVerifier
}

func NewBearerToken(verifier TokenVerifier) *BearerToken {
	return &BearerToken{verifier: verifier}
}

func (b *BearerToken) Authenticate(ctx context.Context, r *http.Request, _ []byte) (*types.AuthContext, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, types.E(types.KindUnauthorized, "missing_token")
	}
	return b.verifier.Verify(ctx, token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// userPermissions is the default grant for non-service callers.
func userPermissions() map[string]bool {
	return map[string]bool{
		"tools:invoke": true,
		"sessions":     true,
		"workflows":    true,
	}
}

// StaticVerifier resolves tokens from a configured API-key table.
type StaticVerifier struct {
	keys map[string]string // token -> caller id
}

func NewStaticVerifier(keys map[string]string) *StaticVerifier {
	return &StaticVerifier{keys: keys}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (*types.AuthContext, error) {
	caller, ok := v.keys[token]
	if !ok {
		return nil, types.E(types.KindUnauthorized, "invalid_token")
	}
	return &types.AuthContext{
		CallerID:    caller,
		Scheme:      types.SchemeAPIKey,
		Permissions: userPermissions(),
	}, nil
}

// HTTPVerifier validates session tokens against an external endpoint.
// The endpoint receives {"token": ...} and answers
// {"valid": bool, "caller_id": ..., "org_id": ...}.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*types.AuthContext, error) {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, types.Wrap(types.KindUnauthorized, err, "token_verification_unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.E(types.KindUnauthorized, "invalid_token")
	}

	var out struct {
		Valid    bool   `json:"valid"`
		CallerID string `json:"caller_id"`
		OrgID    string `json:"org_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.Wrap(types.KindUnauthorized, err, "token_verification_unavailable")
	}
	if !out.Valid {
		return nil, types.E(types.KindUnauthorized, "invalid_token")
	}
	return &types.AuthContext{
		CallerID:    out.CallerID,
		OrgID:       out.OrgID,
		Scheme:      types.SchemeUser,
		Permissions: userPermissions(),
	}, nil
}

// ChainVerifier tries each verifier in order, returning the first success.
// It lets configured API keys coexist with an external session validator.
type ChainVerifier []TokenVerifier

func (c ChainVerifier) Verify(ctx context.Context, token string) (*types.AuthContext, error) {
	var lastErr error
	for _, v := range c {
		authCtx, err := v.Verify(ctx, token)
		if err == nil {
			return authCtx, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = types.E(types.KindUnauthorized, "invalid_token")
	}
	return nil, lastErr
}
