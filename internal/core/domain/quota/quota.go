package quota

import (
	"time"
)

// Tier is the rate/cost classification a principal resolves to.
type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

func (t Tier) String() string {
	return string(t)
}

// OperationClass labels the kind of expensive operation being gated.
type OperationClass string

const (
	OperationChat       OperationClass = "chat"
	OperationGeneration OperationClass = "generation"
	OperationHint       OperationClass = "hint"
)

func (o OperationClass) String() string {
	return string(o)
}

type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowHour   WindowKind = "hour"
	WindowDay    WindowKind = "day"
)

// WindowKinds lists the supported windows from tightest to widest.
var WindowKinds = []WindowKind{WindowMinute, WindowHour, WindowDay}

func (k WindowKind) String() string {
	return string(k)
}

// Duration returns the sliding window length.
func (k WindowKind) Duration() time.Duration {
	switch k {
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (k WindowKind) IsValid() bool {
	return k.Duration() > 0
}

// WindowLimit pairs a window with the number of requests it admits.
type WindowLimit struct {
	Kind  WindowKind
	Limit int
}

// LimitSpec is the immutable set of limits enforced for one (tier, operation class).
// Nil window fields are unconstrained; a value <= 0 denies every request.
type LimitSpec struct {
	Tier           Tier           `json:"tier" yaml:"-"`
	OperationClass OperationClass `json:"operation_class" yaml:"-"`
	PerMinute      *int           `json:"per_minute,omitempty" yaml:"per_minute,omitempty"`
	PerHour        *int           `json:"per_hour,omitempty" yaml:"per_hour,omitempty"`
	PerDay         *int           `json:"per_day,omitempty" yaml:"per_day,omitempty"`
	// DailyCostLimit is the tier's daily budget in USD; nil disables the cost check.
	DailyCostLimit *float64 `json:"daily_cost_limit_usd,omitempty" yaml:"-"`
	// Unconstrained must be set explicitly to skip every window.
	Unconstrained bool `json:"unconstrained,omitempty" yaml:"unconstrained,omitempty"`
}

// Limit returns the configured limit for kind, if any.
func (s LimitSpec) Limit(kind WindowKind) (int, bool) {
	var v *int
	switch kind {
	case WindowMinute:
		v = s.PerMinute
	case WindowHour:
		v = s.PerHour
	case WindowDay:
		v = s.PerDay
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Windows returns the configured windows ordered minute, hour, day.
func (s LimitSpec) Windows() []WindowLimit {
	if s.Unconstrained {
		return nil
	}
	out := make([]WindowLimit, 0, len(WindowKinds))
	for _, k := range WindowKinds {
		if n, ok := s.Limit(k); ok {
			out = append(out, WindowLimit{Kind: k, Limit: n})
		}
	}
	return out
}

// HasWindows reports whether at least one window is configured.
func (s LimitSpec) HasWindows() bool {
	return s.PerMinute != nil || s.PerHour != nil || s.PerDay != nil
}

// DenyAll builds a spec that rejects every request on the minute window.
func DenyAll(tier Tier, op OperationClass) LimitSpec {
	zero := 0
	return LimitSpec{Tier: tier, OperationClass: op, PerMinute: &zero}
}

// WindowResult is the outcome of evaluating one or more windows.
// Kind is the denying window when Allowed is false, otherwise the window with
// the least headroom left.
type WindowResult struct {
	Allowed    bool
	Kind       WindowKind
	Count      int
	Limit      int
	RetryAfter time.Duration
}

func (r WindowResult) Remaining() int {
	if rem := r.Limit - r.Count; rem > 0 {
		return rem
	}
	return 0
}

// Usage is the realized consumption of one downstream call.
type Usage struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Day returns the UTC calendar day key for t.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayStart returns midnight UTC of t's calendar day.
func DayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// UntilNextDay is the time left before the UTC day rolls over.
func UntilNextDay(t time.Time) time.Duration {
	return DayStart(t).Add(24 * time.Hour).Sub(t.UTC())
}
