// internal/admission/admitter.go
package admission

import (
	"context"
	"net"
	"net/http"

	"github.com/user/oraclegate/internal/auth"
	"github.com/user/oraclegate/internal/types"
)

// Admitter combines authentication dispatch with per-route rate limiting.
// It is stateless per request beyond the limiter's counter increments.
type Admitter struct {
	auth    auth.Authenticator
	limiter *RateLimiter
}

func New(authenticator auth.Authenticator, limiter *RateLimiter) *Admitter {
	return &Admitter{auth: authenticator, limiter: limiter}
}

// Admit authenticates the request and consumes rate-limit budget. Health
// routes skip authentication but still draw from a per-address budget.
// Either failure short-circuits before any downstream execution.
func (a *Admitter) Admit(ctx context.Context, r *http.Request, body []byte, class RouteClass) (*types.AuthContext, error) {
	if class == RouteHealth {
		if err := a.limiter.Allow(class, clientAddr(r)); err != nil {
			return nil, err
		}
		return &types.AuthContext{CallerID: clientAddr(r), Scheme: types.SchemeUser}, nil
	}

	authCtx, err := a.auth.Authenticate(ctx, r, body)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(class, authCtx.CallerID); err != nil {
		return nil, err
	}
	return authCtx, nil
}

// Limiter exposes the underlying rate limiter for header reporting.
func (a *Admitter) Limiter() *RateLimiter { return a.limiter }

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
