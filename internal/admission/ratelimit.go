// Package admission makes the combined authenticate-and-rate-limit decision
// before any execution cost is incurred.
package admission

import (
	"sync"
	"time"

	"github.com/user/oraclegate/internal/types"
)

// RouteClass groups routes that share a rate-limit budget.
type RouteClass string

const (
	RouteGeneral RouteClass = "general"
	RouteOracle  RouteClass = "oracle"
	RouteHealth  RouteClass = "health"
)

// rejectionReason is the machine-readable reason returned per route class.
var rejectionReason = map[RouteClass]string{
	RouteGeneral: "rate_limit_exceeded",
	RouteOracle:  "oracle_rate_limit_exceeded",
	RouteHealth:  "health_rate_limit_exceeded",
}

// Limit is a fixed-window budget: at most Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces fixed-window counters keyed by route class and
// caller. The counter increments on every attempt, including rejected ones;
// it resets when the window elapses.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[RouteClass]Limit
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimiter(limits map[RouteClass]Limit) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// SetClock overrides the limiter's clock. Test hook.
func (l *RateLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow consumes one request from the caller's budget for the route class.
// It returns a RateLimited error once the window's budget is exhausted.
// Unknown route classes fall back to the general budget.
func (l *RateLimiter) Allow(class RouteClass, caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok {
		limit = l.limits[RouteGeneral]
		class = RouteGeneral
	}
	if limit.Max <= 0 {
		return nil
	}

	key := string(class) + ":" + caller
	now := l.now()

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= limit.Window {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}

	b.count++
	if b.count > limit.Max {
		return types.E(types.KindRateLimited, "%s", rejectionReason[class])
	}
	return nil
}

// Remaining returns how many requests are left in the caller's current
// window, for surfacing in rate-limit headers.
func (l *RateLimiter) Remaining(class RouteClass, caller string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok {
		limit = l.limits[RouteGeneral]
		class = RouteGeneral
	}
	b, ok := l.buckets[string(class)+":"+caller]
	if !ok || l.now().Sub(b.windowStart) >= limit.Window {
		return limit.Max
	}
	if rem := limit.Max - b.count; rem > 0 {
		return rem
	}
	return 0
}
