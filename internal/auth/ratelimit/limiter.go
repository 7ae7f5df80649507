// Package ratelimit implements fixed-window request limiting on top of the
// key/value store. Counters expire with their window, so there is nothing to
// clean up.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/edugate/edugate/pkg/kvstore"
	"github.com/edugate/edugate/pkg/slogx"
)

const keyPrefix = "ratelimit:"

// Policy is one named fixed-window budget.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// The shipped policies. Login, password reset and MFA are strict because each
// attempt is an oracle; the API budget is a general backstop.
var (
	LoginPolicy         = Policy{Name: "login", MaxRequests: 5, Window: 15 * time.Minute}
	PasswordResetPolicy = Policy{Name: "password-reset", MaxRequests: 3, Window: time.Hour}
	APIPolicy           = Policy{Name: "api", MaxRequests: 100, Window: time.Minute}
	MFAPolicy           = Policy{Name: "mfa", MaxRequests: 5, Window: 5 * time.Minute}
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before trying again. Zero
// when the request was allowed.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	if d := time.Until(r.ResetAt); d > 0 {
		return d
	}
	return time.Second
}

// Limiter counts requests per identifier inside fixed windows.
//
// The counter update is a read-modify-write without cross-process atomicity;
// concurrent requests racing on the same identifier may each observe the same
// count and slightly overshoot the budget. That is accepted: the limiter
// bounds abuse, it is not an exact quota.
type Limiter struct {
	Cache kvstore.Store
}

func key(policyName, identifier string) string {
	return keyPrefix + policyName + ":" + identifier
}

// Check admits or rejects one request for the identifier under the policy.
// Storage failures fail open: availability of login beats exactness of the
// counter, and the resilient cache makes real failures rare.
func (l *Limiter) Check(ctx context.Context, identifier string, p Policy) Result {
	now := time.Now()
	k := key(p.Name, identifier)

	count := 0
	raw, err := l.Cache.Get(ctx, k)
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			count = n
		}
	case err != kvstore.ErrNotFound:
		slogx.FromContext(ctx).Warn("rate limit check failed open",
			slog.String("policy", p.Name), slog.Any("error", err))
		return Result{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests - 1, ResetAt: now.Add(p.Window)}
	}

	// Preserve the running window's expiry; only a fresh window gets the
	// full duration.
	ttl := p.Window
	if count > 0 {
		if remaining, err := l.Cache.TTL(ctx, k); err == nil && remaining > 0 {
			ttl = remaining
		}
	}
	resetAt := now.Add(ttl)

	if count >= p.MaxRequests {
		return Result{Allowed: false, Limit: p.MaxRequests, Remaining: 0, ResetAt: resetAt}
	}

	count++
	if err := l.Cache.Set(ctx, k, strconv.Itoa(count), ttl); err != nil {
		slogx.FromContext(ctx).Warn("rate limit counter not persisted",
			slog.String("policy", p.Name), slog.Any("error", err))
	}

	return Result{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - count,
		ResetAt:   resetAt,
	}
}

// Reset clears the identifier's counter for the policy.
func (l *Limiter) Reset(ctx context.Context, identifier string, p Policy) error {
	return l.Cache.Delete(ctx, key(p.Name, identifier))
}

// Status reports the identifier's current window without consuming a request.
func (l *Limiter) Status(ctx context.Context, identifier string, p Policy) (Result, error) {
	now := time.Now()
	k := key(p.Name, identifier)

	raw, err := l.Cache.Get(ctx, k)
	if err == kvstore.ErrNotFound {
		return Result{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests, ResetAt: now}, nil
	}
	if err != nil {
		return Result{}, err
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return Result{}, fmt.Errorf("corrupt rate limit counter %q: %w", raw, err)
	}

	ttl, err := l.Cache.TTL(ctx, k)
	if err != nil || ttl < 0 {
		ttl = 0
	}

	remaining := p.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < p.MaxRequests,
		Limit:     p.MaxRequests,
		Remaining: remaining,
		ResetAt:   now.Add(ttl),
	}, nil
}

// PolicyByName resolves a shipped policy, for the admin surface.
func PolicyByName(name string) (Policy, bool) {
	for _, p := range []Policy{LoginPolicy, PasswordResetPolicy, APIPolicy, MFAPolicy} {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}
