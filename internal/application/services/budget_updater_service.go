package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

const componentBudgetUpdater = "budget_updater"

// BudgetUpdaterConfig groups configuration parameters for the budget updater.
type BudgetUpdaterConfig struct {
	WriteTimeout     time.Duration
	WarningThreshold float64
	NotifyTimeout    time.Duration
}

// BudgetUpdaterService commits realized cost to the ledger off the response path.
type BudgetUpdaterService struct {
	ledger   ports.CostLedger
	resolver ports.TierResolver
	pricing  *Pricing
	notifier ports.AlertNotifier
	metrics  ports.GateMetrics
	cfg      BudgetUpdaterConfig
	logger   *logrus.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBudgetUpdaterService creates the updater. notifier and metrics may be nil.
func NewBudgetUpdaterService(ledger ports.CostLedger, resolver ports.TierResolver, pricing *Pricing, notifier ports.AlertNotifier, metrics ports.GateMetrics, cfg *BudgetUpdaterConfig, logger *logrus.Logger) *BudgetUpdaterService {
	c := BudgetUpdaterConfig{
		WriteTimeout:     250 * time.Millisecond,
		WarningThreshold: 0.8,
		NotifyTimeout:    10 * time.Second,
	}
	if cfg != nil {
		if cfg.WriteTimeout > 0 {
			c.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.WarningThreshold > 0 && cfg.WarningThreshold <= 1 {
			c.WarningThreshold = cfg.WarningThreshold
		}
		if cfg.NotifyTimeout > 0 {
			c.NotifyTimeout = cfg.NotifyTimeout
		}
	}
	if pricing == nil {
		pricing = NewPricing(nil)
	}
	return &BudgetUpdaterService{
		ledger:   ledger,
		resolver: resolver,
		pricing:  pricing,
		notifier: notifier,
		metrics:  metrics,
		cfg:      c,
		logger:   logger,
	}
}

// RecordUsage returns immediately. The write runs in the background on a context that
// outlives the caller's request.
func (s *BudgetUpdaterService) RecordUsage(ctx context.Context, principalID string, op quota.OperationClass, usage quota.Usage, now time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"principal": principalID, "operation_class": op}).Error("budget updater closed, usage dropped")
		}
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		_, _ = s.Commit(detached, principalID, op, usage, now)
	}()
}

// Commit prices usage, adds it to the ledger and emits the day's warning when the total
// first crosses the threshold. Errors are logged here; callers may ignore them.
func (s *BudgetUpdaterService) Commit(ctx context.Context, principalID string, op quota.OperationClass, usage quota.Usage, now time.Time) (float64, error) {
	cost := s.pricing.Cost(usage)
	if cost <= 0 {
		return 0, nil
	}
	fields := logrus.Fields{
		"principal":       principalID,
		"operation_class": op,
		"model":           usage.Model,
		"cost_usd":        cost,
	}
	if _, known := s.pricing.Rate(usage.Model); !known && s.logger != nil {
		s.logger.WithFields(fields).Warn("budget updater: no rate for model, using fallback rate")
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	total, err := s.ledger.AddCost(wctx, principalID, cost, now)
	cancel()
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncDegraded(componentBudgetUpdater)
		}
		if s.logger != nil {
			s.logger.WithFields(fields).WithError(err).Error("budget updater: failed to record cost")
		}
		return 0, fmt.Errorf("%w: %w", quota.ErrBudgetWrite, err)
	}

	tier := s.resolver.Resolve(ctx, principalID)
	if s.metrics != nil {
		s.metrics.AddSpend(tier, cost)
	}
	spec := s.resolver.LimitsFor(tier, op)
	if spec.DailyCostLimit != nil {
		s.checkWarning(ctx, principalID, op, tier, total, *spec.DailyCostLimit, now)
	}
	return total, nil
}

func (s *BudgetUpdaterService) checkWarning(ctx context.Context, principalID string, op quota.OperationClass, tier quota.Tier, total, limit float64, now time.Time) {
	if limit <= 0 || total < s.cfg.WarningThreshold*limit {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	first, err := s.ledger.MarkWarned(wctx, principalID, now)
	cancel()
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"principal": principalID}).WithError(err).Error("budget updater: failed to record warning marker")
		}
		return
	}
	if !first {
		return
	}

	alert := ports.BudgetAlert{
		PrincipalID:    principalID,
		Tier:           tier.String(),
		OperationClass: op.String(),
		Day:            quota.Day(now),
		CostCurrentUSD: total,
		CostLimitUSD:   limit,
		Threshold:      s.cfg.WarningThreshold,
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"principal":        principalID,
			"tier":             tier,
			"operation_class":  op,
			"day":              alert.Day,
			"cost_current_usd": total,
			"cost_limit_usd":   limit,
			"threshold":        s.cfg.WarningThreshold,
		}).Warn("principal crossed daily cost warning threshold")
	}
	if s.notifier == nil {
		return
	}
	nctx, ncancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer ncancel()
	if err := s.notifier.NotifyBudgetWarning(nctx, alert); err != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"principal": principalID}).WithError(err).Error("budget updater: failed to deliver budget warning")
	}
}

// Close stops accepting usage and waits for in-flight writes or ctx expiry.
func (s *BudgetUpdaterService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
