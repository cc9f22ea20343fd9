package security

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beroe-labs/abi/internal/kvstore"
)

// LimitPreset names a configured endpoint budget.
type LimitPreset string

// Presets for the authenticated write endpoints.
const (
	PresetLogin       LimitPreset = "login"
	PresetRegister    LimitPreset = "register"
	PresetInvite      LimitPreset = "invite"
	PresetWaitlist    LimitPreset = "waitlist"
	PresetVerifyEmail LimitPreset = "verify-email"
)

// Limit is a fixed-window budget.
type Limit struct {
	Max    int64
	Window time.Duration
}

var presetLimits = map[LimitPreset]Limit{
	PresetLogin:       {Max: 5, Window: time.Minute},
	PresetRegister:    {Max: 3, Window: time.Minute},
	PresetInvite:      {Max: 5, Window: time.Minute},
	PresetWaitlist:    {Max: 3, Window: time.Minute},
	PresetVerifyEmail: {Max: 3, Window: time.Minute},
}

// PresetLimit returns the budget for a preset; unknown presets get the
// login budget.
func PresetLimit(p LimitPreset) Limit {
	if l, ok := presetLimits[p]; ok {
		return l
	}
	return presetLimits[PresetLogin]
}

// LimitResult is the outcome of one rate-limit check.
type LimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimiter enforces fixed-window counters keyed by ip:endpoint over any
// kvstore driver; swapping memory for Redis changes nothing here.
type RateLimiter struct {
	store kvstore.Store
}

// NewRateLimiter creates a limiter over the given store.
func NewRateLimiter(store kvstore.Store) *RateLimiter {
	return &RateLimiter{store: store}
}

// Allow consumes one slot from the window for ip on the preset's endpoint.
func (r *RateLimiter) Allow(ctx context.Context, ip string, preset LimitPreset) (LimitResult, error) {
	return r.AllowLimit(ctx, ip, string(preset), PresetLimit(preset))
}

// AllowLimit consumes one slot from an explicit budget.
func (r *RateLimiter) AllowLimit(ctx context.Context, ip, endpoint string, limit Limit) (LimitResult, error) {
	key := "ratelimit:" + ip + ":" + endpoint
	count, resetAt, err := r.store.Incr(ctx, key, limit.Window)
	if err != nil {
		return LimitResult{}, eris.Wrap(err, "security: rate limit incr")
	}

	remaining := limit.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return LimitResult{
		Allowed:   count <= limit.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
