package quota

import (
	"math"
	"time"
)

// Reason explains an admission decision.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonRateLimitedMinute Reason = "rate_limited_minute"
	ReasonRateLimitedHour   Reason = "rate_limited_hour"
	ReasonRateLimitedDay    Reason = "rate_limited_day"
	ReasonCostLimitExceeded Reason = "cost_limit_exceeded"
)

// RateLimitReason maps a window to its denial reason.
func RateLimitReason(kind WindowKind) Reason {
	switch kind {
	case WindowHour:
		return ReasonRateLimitedHour
	case WindowDay:
		return ReasonRateLimitedDay
	default:
		return ReasonRateLimitedMinute
	}
}

// IsRateLimit reports whether the denial came from a request window rather than the budget.
func (r Reason) IsRateLimit() bool {
	return r == ReasonRateLimitedMinute || r == ReasonRateLimitedHour || r == ReasonRateLimitedDay
}

// Decision is returned synchronously for every admission attempt. Optional
// fields are nil when they do not apply and marshal as JSON null.
type Decision struct {
	Admitted          bool     `json:"admitted"`
	Reason            Reason   `json:"reason"`
	RetryAfterSeconds *int     `json:"retry_after_seconds"`
	Limit             *int     `json:"limit"`
	Remaining         *int     `json:"remaining"`
	CostLimitUSD      *float64 `json:"cost_limit_usd"`
	CostCurrentUSD    *float64 `json:"cost_current_usd"`
	Tier              Tier     `json:"tier,omitempty"`
}

// NewAdmitted builds an admission carrying the binding window's headroom.
// An unconstrained request passes limit < 0 and gets no window fields.
func NewAdmitted(tier Tier, limit, remaining int) *Decision {
	d := &Decision{Admitted: true, Reason: ReasonOK, Tier: tier}
	if limit >= 0 {
		d.Limit = &limit
		d.Remaining = &remaining
	}
	return d
}

// NewRateLimited builds a denial for the given window.
func NewRateLimited(tier Tier, kind WindowKind, limit int, retryAfter time.Duration) *Decision {
	retry := RetryAfterSeconds(retryAfter)
	remaining := 0
	return &Decision{
		Admitted:          false,
		Reason:            RateLimitReason(kind),
		RetryAfterSeconds: &retry,
		Limit:             &limit,
		Remaining:         &remaining,
		Tier:              tier,
	}
}

// NewCostLimited builds a budget denial; retryAfter is normally the time to UTC midnight.
func NewCostLimited(tier Tier, costLimit, costCurrent float64, retryAfter time.Duration) *Decision {
	retry := RetryAfterSeconds(retryAfter)
	d := &Decision{
		Admitted:          false,
		Reason:            ReasonCostLimitExceeded,
		RetryAfterSeconds: &retry,
		Tier:              tier,
	}
	return d.WithCost(costLimit, costCurrent)
}

// WithCost attaches the budget figures to the decision.
func (d *Decision) WithCost(limit, current float64) *Decision {
	d.CostLimitUSD = &limit
	d.CostCurrentUSD = &current
	return d
}

// Err converts a denial into a *LimitError; admissions return nil.
func (d *Decision) Err() error {
	if d == nil || d.Admitted {
		return nil
	}
	le := &LimitError{Reason: d.Reason}
	if d.RetryAfterSeconds != nil {
		le.RetryAfter = time.Duration(*d.RetryAfterSeconds) * time.Second
	}
	if d.Reason.IsRateLimit() {
		le.Err = ErrRateLimitExceeded
		if d.Limit != nil {
			le.Limit = float64(*d.Limit)
		}
		return le
	}
	le.Err = ErrCostLimitExceeded
	if d.CostLimitUSD != nil {
		le.Limit = *d.CostLimitUSD
	}
	if d.CostCurrentUSD != nil {
		le.Current = *d.CostCurrentUSD
	}
	return le
}

// RetryAfterSeconds rounds up to whole seconds and never returns less than 1.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
