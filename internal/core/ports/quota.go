package ports

import (
	"context"
	"time"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

// WindowCounter keeps exact sliding-window request counts in the shared store.
// Every method is atomic per (principal, operation class) across all process instances.
type WindowCounter interface {
	// CheckAndRecord prunes, counts and conditionally records one request in a single window.
	CheckAndRecord(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, limit int, now time.Time) (quota.WindowResult, error)
	// Peek evaluates all windows without recording; the first exhausted window is reported.
	Peek(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error)
	// Commit re-checks all windows and records the request in every one of them only if all pass.
	Commit(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error)
	// Count returns the number of live entries in a window without modifying it.
	Count(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, now time.Time) (int, error)
}

// CostLedger accumulates per-principal, per-UTC-day spend in the shared store.
type CostLedger interface {
	// AddCost atomically increments the day's total, setting its expiry on first write.
	AddCost(ctx context.Context, principalID string, amount float64, day time.Time) (float64, error)
	GetCost(ctx context.Context, principalID string, day time.Time) (float64, error)
	// WouldExceed is a pure read: current >= dailyLimit.
	WouldExceed(ctx context.Context, principalID string, dailyLimit float64, day time.Time) (bool, float64, error)
	// MarkWarned records that the day's warning was emitted; first is true only for the first caller.
	MarkWarned(ctx context.Context, principalID string, day time.Time) (first bool, err error)
}

// TierResolver maps principals to tiers and tiers to limits.
type TierResolver interface {
	// Resolve never fails; directory errors fall back to the most restrictive tier.
	Resolve(ctx context.Context, principalID string) quota.Tier
	LimitsFor(tier quota.Tier, op quota.OperationClass) quota.LimitSpec
}

// EnforcementGate is the single admission entry point on the request path.
type EnforcementGate interface {
	Admit(ctx context.Context, principalID string, op quota.OperationClass, now time.Time) *quota.Decision
}

// BudgetUpdater commits realized cost after a downstream call succeeds.
type BudgetUpdater interface {
	// RecordUsage returns immediately; failures are logged, never surfaced.
	RecordUsage(ctx context.Context, principalID string, op quota.OperationClass, usage quota.Usage, now time.Time)
}

// GateMetrics receives enforcement telemetry.
type GateMetrics interface {
	ObserveDecision(op quota.OperationClass, reason quota.Reason, elapsed time.Duration)
	IncDegraded(component string)
	AddSpend(tier quota.Tier, amount float64)
}

// UsageReporter builds read-only usage snapshots for operators and principals.
type UsageReporter interface {
	Report(ctx context.Context, principalID string, ops []quota.OperationClass, now time.Time) (*quota.UsageReport, error)
}
