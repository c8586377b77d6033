package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// UsageReportService reads counters without recording anything.
type UsageReportService struct {
	resolver ports.TierResolver
	windows  ports.WindowCounter
	ledger   ports.CostLedger
	logger   *logrus.Logger
}

func NewUsageReportService(resolver ports.TierResolver, windows ports.WindowCounter, ledger ports.CostLedger, logger *logrus.Logger) *UsageReportService {
	return &UsageReportService{resolver: resolver, windows: windows, ledger: ledger, logger: logger}
}

func (s *UsageReportService) Report(ctx context.Context, principalID string, ops []quota.OperationClass, now time.Time) (*quota.UsageReport, error) {
	tier := s.resolver.Resolve(ctx, principalID)
	cost, err := s.ledger.GetCost(ctx, principalID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost: %w", err)
	}

	report := &quota.UsageReport{
		PrincipalID:    principalID,
		Tier:           tier,
		Day:            quota.Day(now),
		CostCurrentUSD: cost,
		Operations:     make([]quota.OperationUsage, 0, len(ops)),
	}
	for _, op := range ops {
		spec := s.resolver.LimitsFor(tier, op)
		if spec.DailyCostLimit != nil && report.CostLimitUSD == nil {
			v := *spec.DailyCostLimit
			report.CostLimitUSD = &v
		}
		ou := quota.OperationUsage{OperationClass: op, Unconstrained: spec.Unconstrained, Windows: []quota.WindowUsage{}}
		for _, w := range spec.Windows() {
			n, err := s.windows.Count(ctx, principalID, op, w.Kind, now)
			if err != nil {
				return nil, fmt.Errorf("failed to count %s/%s window: %w", op, w.Kind, err)
			}
			ou.Windows = append(ou.Windows, quota.WindowUsage{Kind: w.Kind, Count: n, Limit: w.Limit})
		}
		report.Operations = append(report.Operations, ou)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"principal": principalID, "tier": tier, "cost_current_usd": cost}).Debug("usage report built")
	}
	return report, nil
}
