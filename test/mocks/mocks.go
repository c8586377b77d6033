package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// WindowCounterMock is a lightweight mock for WindowCounter. Without a Fn every
// window passes and nothing is recorded.
type WindowCounterMock struct {
	CheckAndRecordFn func(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, limit int, now time.Time) (quota.WindowResult, error)
	PeekFn           func(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error)
	CommitFn         func(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error)
	CountFn          func(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, now time.Time) (int, error)

	mu      sync.Mutex
	Peeks   int
	Commits int
}

func (m *WindowCounterMock) CheckAndRecord(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, limit int, now time.Time) (quota.WindowResult, error) {
	if m.CheckAndRecordFn != nil {
		return m.CheckAndRecordFn(ctx, principalID, op, kind, limit, now)
	}
	return quota.WindowResult{Allowed: true, Kind: kind, Count: 1, Limit: limit}, nil
}

func (m *WindowCounterMock) Peek(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	m.mu.Lock()
	m.Peeks++
	m.mu.Unlock()
	if m.PeekFn != nil {
		return m.PeekFn(ctx, principalID, op, windows, now)
	}
	return passing(windows), nil
}

func (m *WindowCounterMock) Commit(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	if m.CommitFn != nil {
		return m.CommitFn(ctx, principalID, op, windows, now)
	}
	r := passing(windows)
	r.Count++
	return r, nil
}

func (m *WindowCounterMock) Count(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, now time.Time) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, principalID, op, kind, now)
	}
	return 0, nil
}

// CommitCount returns how many times Commit was called.
func (m *WindowCounterMock) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Commits
}

func passing(windows []quota.WindowLimit) quota.WindowResult {
	if len(windows) == 0 {
		return quota.WindowResult{Allowed: true}
	}
	return quota.WindowResult{Allowed: true, Kind: windows[0].Kind, Limit: windows[0].Limit}
}

// CostLedgerMock is an in-memory CostLedger. Fn fields override the default behaviour.
type CostLedgerMock struct {
	AddCostFn     func(ctx context.Context, principalID string, amount float64, day time.Time) (float64, error)
	GetCostFn     func(ctx context.Context, principalID string, day time.Time) (float64, error)
	WouldExceedFn func(ctx context.Context, principalID string, dailyLimit float64, day time.Time) (bool, float64, error)
	MarkWarnedFn  func(ctx context.Context, principalID string, day time.Time) (bool, error)

	mu     sync.Mutex
	totals map[string]float64
	warned map[string]bool
}

func ledgerKey(principalID string, day time.Time) string {
	return principalID + "|" + quota.Day(day)
}

// SetCost seeds a principal's total for day.
func (m *CostLedgerMock) SetCost(principalID string, day time.Time, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totals == nil {
		m.totals = make(map[string]float64)
	}
	m.totals[ledgerKey(principalID, day)] = amount
}

func (m *CostLedgerMock) AddCost(ctx context.Context, principalID string, amount float64, day time.Time) (float64, error) {
	if m.AddCostFn != nil {
		return m.AddCostFn(ctx, principalID, amount, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totals == nil {
		m.totals = make(map[string]float64)
	}
	k := ledgerKey(principalID, day)
	m.totals[k] += amount
	return m.totals[k], nil
}

func (m *CostLedgerMock) GetCost(ctx context.Context, principalID string, day time.Time) (float64, error) {
	if m.GetCostFn != nil {
		return m.GetCostFn(ctx, principalID, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[ledgerKey(principalID, day)], nil
}

func (m *CostLedgerMock) WouldExceed(ctx context.Context, principalID string, dailyLimit float64, day time.Time) (bool, float64, error) {
	if m.WouldExceedFn != nil {
		return m.WouldExceedFn(ctx, principalID, dailyLimit, day)
	}
	current, err := m.GetCost(ctx, principalID, day)
	if err != nil {
		return true, 0, err
	}
	return current >= dailyLimit, current, nil
}

func (m *CostLedgerMock) MarkWarned(ctx context.Context, principalID string, day time.Time) (bool, error) {
	if m.MarkWarnedFn != nil {
		return m.MarkWarnedFn(ctx, principalID, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warned == nil {
		m.warned = make(map[string]bool)
	}
	k := ledgerKey(principalID, day)
	if m.warned[k] {
		return false, nil
	}
	m.warned[k] = true
	return true, nil
}

// TierResolverMock resolves every principal to Tier and returns Specs[op].
type TierResolverMock struct {
	ResolveFn   func(ctx context.Context, principalID string) quota.Tier
	LimitsForFn func(tier quota.Tier, op quota.OperationClass) quota.LimitSpec
	Tier        quota.Tier
	Specs       map[quota.OperationClass]quota.LimitSpec
}

func (m *TierResolverMock) Resolve(ctx context.Context, principalID string) quota.Tier {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, principalID)
	}
	if m.Tier == "" {
		return quota.TierStandard
	}
	return m.Tier
}

func (m *TierResolverMock) LimitsFor(tier quota.Tier, op quota.OperationClass) quota.LimitSpec {
	if m.LimitsForFn != nil {
		return m.LimitsForFn(tier, op)
	}
	if spec, ok := m.Specs[op]; ok {
		return spec
	}
	return quota.DenyAll(tier, op)
}

// PrincipalDirectoryMock is a lightweight mock for PrincipalDirectory.
type PrincipalDirectoryMock struct {
	GetRoleFn func(ctx context.Context, principalID string) (user.UserRole, error)

	mu    sync.Mutex
	Calls int
}

func (m *PrincipalDirectoryMock) GetRole(ctx context.Context, principalID string) (user.UserRole, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GetRoleFn != nil {
		return m.GetRoleFn(ctx, principalID)
	}
	return user.RoleStudent, nil
}

func (m *PrincipalDirectoryMock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// AlertNotifierMock records every alert it receives.
type AlertNotifierMock struct {
	NotifyBudgetWarningFn func(ctx context.Context, alert ports.BudgetAlert) error

	mu     sync.Mutex
	Alerts []ports.BudgetAlert
}

func (m *AlertNotifierMock) NotifyBudgetWarning(ctx context.Context, alert ports.BudgetAlert) error {
	m.mu.Lock()
	m.Alerts = append(m.Alerts, alert)
	m.mu.Unlock()
	if m.NotifyBudgetWarningFn != nil {
		return m.NotifyBudgetWarningFn(ctx, alert)
	}
	return nil
}

func (m *AlertNotifierMock) Sent() []ports.BudgetAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.BudgetAlert(nil), m.Alerts...)
}

// GateMetricsMock counts what the gate reports.
type GateMetricsMock struct {
	mu        sync.Mutex
	Decisions map[quota.Reason]int
	Degraded  map[string]int
	Spend     map[quota.Tier]float64
}

func (m *GateMetricsMock) ObserveDecision(op quota.OperationClass, reason quota.Reason, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Decisions == nil {
		m.Decisions = make(map[quota.Reason]int)
	}
	m.Decisions[reason]++
}

func (m *GateMetricsMock) IncDegraded(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Degraded == nil {
		m.Degraded = make(map[string]int)
	}
	m.Degraded[component]++
}

func (m *GateMetricsMock) AddSpend(tier quota.Tier, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Spend == nil {
		m.Spend = make(map[quota.Tier]float64)
	}
	m.Spend[tier] += amount
}

func (m *GateMetricsMock) DegradedCount(component string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Degraded[component]
}

// EnforcementGateMock admits everything unless AdmitFn is set.
type EnforcementGateMock struct {
	AdmitFn func(ctx context.Context, principalID string, op quota.OperationClass, now time.Time) *quota.Decision
}

func (m *EnforcementGateMock) Admit(ctx context.Context, principalID string, op quota.OperationClass, now time.Time) *quota.Decision {
	if m.AdmitFn != nil {
		return m.AdmitFn(ctx, principalID, op, now)
	}
	return quota.NewAdmitted(quota.TierStandard, -1, 0)
}

// BudgetUpdaterMock keeps the usage it was handed.
type BudgetUpdaterMock struct {
	mu       sync.Mutex
	Recorded []quota.Usage
}

func (m *BudgetUpdaterMock) RecordUsage(ctx context.Context, principalID string, op quota.OperationClass, usage quota.Usage, now time.Time) {
	m.mu.Lock()
	m.Recorded = append(m.Recorded, usage)
	m.mu.Unlock()
}

func (m *BudgetUpdaterMock) Usages() []quota.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quota.Usage(nil), m.Recorded...)
}

// UsageReporterMock is a lightweight mock for UsageReporter.
type UsageReporterMock struct {
	ReportFn func(ctx context.Context, principalID string, ops []quota.OperationClass, now time.Time) (*quota.UsageReport, error)
}

func (m *UsageReporterMock) Report(ctx context.Context, principalID string, ops []quota.OperationClass, now time.Time) (*quota.UsageReport, error) {
	if m.ReportFn != nil {
		return m.ReportFn(ctx, principalID, ops, now)
	}
	return &quota.UsageReport{PrincipalID: principalID, Tier: quota.TierStandard, Day: quota.Day(now)}, nil
}

var (
	_ ports.WindowCounter      = (*WindowCounterMock)(nil)
	_ ports.CostLedger         = (*CostLedgerMock)(nil)
	_ ports.TierResolver       = (*TierResolverMock)(nil)
	_ ports.PrincipalDirectory = (*PrincipalDirectoryMock)(nil)
	_ ports.AlertNotifier      = (*AlertNotifierMock)(nil)
	_ ports.GateMetrics        = (*GateMetricsMock)(nil)
	_ ports.EnforcementGate    = (*EnforcementGateMock)(nil)
	_ ports.BudgetUpdater      = (*BudgetUpdaterMock)(nil)
	_ ports.UsageReporter      = (*UsageReporterMock)(nil)
)
