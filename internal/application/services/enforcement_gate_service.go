package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// WindowFailurePolicy decides admission when the window store cannot be reached.
// The cost check always fails closed.
type WindowFailurePolicy string

const (
	FailOpen   WindowFailurePolicy = "fail_open"
	FailClosed WindowFailurePolicy = "fail_closed"
)

const (
	componentWindowCounter = "window_counter"
	componentCostLedger    = "cost_ledger"
)

// EnforcementGateConfig groups configuration parameters for the gate.
type EnforcementGateConfig struct {
	StoreTimeout        time.Duration
	// DirectoryTimeout bounds tier resolution; it defaults to StoreTimeout.
	DirectoryTimeout    time.Duration
	WindowFailurePolicy WindowFailurePolicy
}

// EnforcementGateService composes window and cost checks into one admission decision.
//
// Windows are evaluated first as non-recording predicates, then the cost budget, and only
// then is the request recorded in every window by a single atomic commit that re-checks
// the limits. A request denied at any step leaves no trace in the store.
type EnforcementGateService struct {
	resolver   ports.TierResolver
	windows    ports.WindowCounter
	ledger     ports.CostLedger
	metrics    ports.GateMetrics
	timeout    time.Duration
	dirTimeout time.Duration
	policy     WindowFailurePolicy
	tracer     trace.Tracer
	logger     *logrus.Logger
}

func NewEnforcementGateService(resolver ports.TierResolver, windows ports.WindowCounter, ledger ports.CostLedger, metrics ports.GateMetrics, cfg *EnforcementGateConfig, logger *logrus.Logger) *EnforcementGateService {
	timeout := 300 * time.Millisecond
	var dirTimeout time.Duration
	policy := FailOpen
	if cfg != nil {
		if cfg.StoreTimeout > 0 {
			timeout = cfg.StoreTimeout
		}
		dirTimeout = cfg.DirectoryTimeout
		if cfg.WindowFailurePolicy == FailClosed {
			policy = FailClosed
		}
	}
	if dirTimeout <= 0 {
		dirTimeout = timeout
	}
	return &EnforcementGateService{
		resolver:   resolver,
		windows:    windows,
		ledger:     ledger,
		metrics:    metrics,
		timeout:    timeout,
		dirTimeout: dirTimeout,
		policy:     policy,
		tracer:     otel.Tracer("github.com/lizTheDeveloper/llm-tutor-sub000/internal/application/services"),
		logger:     logger,
	}
}

// Admit never returns nil and never exposes store or directory errors.
func (s *EnforcementGateService) Admit(ctx context.Context, principalID string, op quota.OperationClass, now time.Time) *quota.Decision {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "EnforcementGate.Admit", trace.WithAttributes(
		attribute.String("quota.operation_class", op.String()),
	))
	defer span.End()

	d := s.admit(ctx, principalID, op, now)

	span.SetAttributes(
		attribute.String("quota.tier", d.Tier.String()),
		attribute.Bool("quota.admitted", d.Admitted),
		attribute.String("quota.reason", string(d.Reason)),
	)
	if s.metrics != nil {
		s.metrics.ObserveDecision(op, d.Reason, time.Since(start))
	}
	if !d.Admitted && s.logger != nil {
		fields := logrus.Fields{
			"principal":       principalID,
			"operation_class": op,
			"reason":          d.Reason,
			"tier":            d.Tier,
		}
		if d.RetryAfterSeconds != nil {
			fields["retry_after_seconds"] = *d.RetryAfterSeconds
		}
		if d.CostCurrentUSD != nil {
			fields["cost_current_usd"] = *d.CostCurrentUSD
		}
		s.logger.WithFields(fields).Info("admission denied")
	}
	return d
}

func (s *EnforcementGateService) admit(ctx context.Context, principalID string, op quota.OperationClass, now time.Time) *quota.Decision {
	tier := s.resolve(ctx, principalID)
	spec := s.resolver.LimitsFor(tier, op)
	windows := spec.Windows()
	for _, w := range windows {
		// disabled class; holds even when the store is down
		if w.Limit <= 0 {
			return quota.NewRateLimited(tier, w.Kind, 0, w.Kind.Duration())
		}
	}

	degraded := false
	if len(windows) > 0 {
		res, err := s.peek(ctx, principalID, op, windows, now)
		switch {
		case err != nil:
			s.degrade(componentWindowCounter, principalID, op, err)
			if s.policy == FailClosed {
				return quota.NewRateLimited(tier, windows[0].Kind, windows[0].Limit, time.Second)
			}
			degraded = true
		case !res.Allowed:
			return quota.NewRateLimited(tier, res.Kind, res.Limit, res.RetryAfter)
		}
	}

	var costLimit, costCurrent float64
	hasBudget := spec.DailyCostLimit != nil
	if hasBudget {
		costLimit = *spec.DailyCostLimit
		exceeded, current, err := s.wouldExceed(ctx, principalID, costLimit, now)
		if err != nil {
			s.degrade(componentCostLedger, principalID, op, err)
			return quota.NewCostLimited(tier, costLimit, current, quota.UntilNextDay(now))
		}
		if exceeded {
			return quota.NewCostLimited(tier, costLimit, current, quota.UntilNextDay(now))
		}
		costCurrent = current
	}

	var d *quota.Decision
	if len(windows) == 0 || degraded {
		d = quota.NewAdmitted(tier, -1, 0)
	} else {
		res, err := s.commit(ctx, principalID, op, windows, now)
		switch {
		case err != nil:
			s.degrade(componentWindowCounter, principalID, op, err)
			if s.policy == FailClosed {
				return quota.NewRateLimited(tier, windows[0].Kind, windows[0].Limit, time.Second)
			}
			d = quota.NewAdmitted(tier, -1, 0)
		case !res.Allowed:
			// a concurrent request took the last slot between peek and commit
			return quota.NewRateLimited(tier, res.Kind, res.Limit, res.RetryAfter)
		default:
			d = quota.NewAdmitted(tier, res.Limit, res.Remaining())
		}
	}
	if hasBudget {
		d.WithCost(costLimit, costCurrent)
	}
	return d
}

// resolve falls back to the most restrictive tier once the directory deadline passes.
func (s *EnforcementGateService) resolve(ctx context.Context, principalID string) quota.Tier {
	ctx, cancel := context.WithTimeout(ctx, s.dirTimeout)
	defer cancel()
	return s.resolver.Resolve(ctx, principalID)
}

func (s *EnforcementGateService) peek(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.windows.Peek(ctx, principalID, op, windows, now)
}

func (s *EnforcementGateService) commit(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.windows.Commit(ctx, principalID, op, windows, now)
}

func (s *EnforcementGateService) wouldExceed(ctx context.Context, principalID string, limit float64, now time.Time) (bool, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	exceeded, current, err := s.ledger.WouldExceed(ctx, principalID, limit, now)
	if err != nil {
		return true, current, err
	}
	return exceeded, current, nil
}

func (s *EnforcementGateService) degrade(component, principalID string, op quota.OperationClass, err error) {
	if s.metrics != nil {
		s.metrics.IncDegraded(component)
	}
	if s.logger == nil {
		return
	}
	policy := string(FailClosed)
	if component == componentWindowCounter {
		policy = string(s.policy)
	}
	s.logger.WithFields(logrus.Fields{
		"component":       component,
		"principal":       principalID,
		"operation_class": op,
		"policy":          policy,
	}).WithError(err).Error("enforcement gate: shared store degraded")
}
