package quota

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is returned when a request window is exhausted.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCostLimitExceeded is returned once the daily budget is spent; it resets at UTC midnight.
	ErrCostLimitExceeded = errors.New("budget exhausted, resets at UTC midnight")

	// ErrDirectoryLookup is returned when a principal's role cannot be resolved.
	ErrDirectoryLookup = errors.New("principal directory lookup failed")

	// ErrStoreUnavailable wraps shared counter store failures and timeouts.
	ErrStoreUnavailable = errors.New("shared counter store unavailable")

	// ErrBudgetWrite is returned when realized cost could not be committed.
	ErrBudgetWrite = errors.New("budget write failed")

	ErrUnknownOperationClass = errors.New("unknown operation class")
	ErrInvalidLimits         = errors.New("invalid limits configuration")
)

// LimitError carries the details of a denial.
type LimitError struct {
	Reason     Reason
	Limit      float64
	Current    float64
	RetryAfter time.Duration
	Err        error
}

func (e *LimitError) Error() string {
	if e.Reason == ReasonCostLimitExceeded {
		return fmt.Sprintf("%s: spent %.4f of %.4f USD", e.Err, e.Current, e.Limit)
	}
	return fmt.Sprintf("%s (%s): limit %.0f, retry after %s", e.Err, e.Reason, e.Limit, e.RetryAfter)
}

func (e *LimitError) Unwrap() error {
	return e.Err
}
