package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	impl "github.com/lizTheDeveloper/llm-tutor-sub000/internal/application/services"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
)

// stack wires the gate and the budget updater to a miniredis-backed store.
type stack struct {
	m       *miniredis.Miniredis
	windows *repositories.WindowCounterRedisRepository
	ledger  *repositories.CostLedgerRedisRepository
	gate    *impl.EnforcementGateService
	updater *impl.BudgetUpdaterService
	hook    *logtest.Hook
}

func newStack(t *testing.T, limitsYAML string) *stack {
	t.Helper()
	limits, err := configs.ParseLimits([]byte(limitsYAML))
	require.NoError(t, err)

	m := miniredis.RunT(t)
	m.SetTime(t0)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, hook := logtest.NewNullLogger()
	windows := repositories.NewWindowCounterRedisRepository(client, "ratelimit")
	ledger := repositories.NewCostLedgerRedisRepository(client, "costledger", 24*time.Hour)
	resolver := impl.NewTierResolverService(roleDirectory(user.RoleStudent), limits, time.Minute, logger)

	return &stack{
		m:       m,
		windows: windows,
		ledger:  ledger,
		gate:    impl.NewEnforcementGateService(resolver, windows, ledger, nil, &impl.EnforcementGateConfig{StoreTimeout: time.Second}, logger),
		updater: impl.NewBudgetUpdaterService(ledger, resolver, impl.NewPricing(limits.Pricing), nil, nil, &impl.BudgetUpdaterConfig{WriteTimeout: time.Second, WarningThreshold: 0.8}, logger),
		hook:    hook,
	}
}

const standardChat = `
fallback_tier: standard
roles:
  student: standard
tiers:
  standard:
    daily_cost_limit_usd: 1.00
    operations:
      chat:
        per_minute: 10
pricing:
  flat:
    usd_per_1k_prompt_tokens: 1.0
    usd_per_1k_completion_tokens: 0
`

func TestScenario_MinuteWindow(t *testing.T) {
	s := newStack(t, standardChat)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d := s.gate.Admit(ctx, "p1", quota.OperationChat, t0)
		require.True(t, d.Admitted, "request %d", i+1)
		assert.Equal(t, 9-i, *d.Remaining)
	}

	d := s.gate.Admit(ctx, "p1", quota.OperationChat, t0.Add(500*time.Millisecond))
	require.False(t, d.Admitted)
	assert.Equal(t, quota.ReasonRateLimitedMinute, d.Reason)
	assert.Equal(t, 60, *d.RetryAfterSeconds)

	d = s.gate.Admit(ctx, "p1", quota.OperationChat, t0.Add(61*time.Second))
	assert.True(t, d.Admitted)
}

func TestScenario_DailyBudget(t *testing.T) {
	s := newStack(t, standardChat)
	ctx := context.Background()

	_, err := s.updater.Commit(ctx, "p1", quota.OperationChat, dollars(0.5), t0)
	require.NoError(t, err)
	_, err = s.updater.Commit(ctx, "p1", quota.OperationChat, dollars(0.45), t0)
	require.NoError(t, err)

	d := s.gate.Admit(ctx, "p1", quota.OperationChat, t0.Add(time.Minute))
	require.True(t, d.Admitted)
	assert.InDelta(t, 0.95, *d.CostCurrentUSD, 1e-9)
	assert.Equal(t, 1, countMessages(s.hook, warningMessage))

	s.updater.RecordUsage(ctx, "p1", quota.OperationChat, dollars(0.1), t0.Add(time.Minute))
	require.NoError(t, s.updater.Close(ctx))
	assert.Equal(t, 1, countMessages(s.hook, warningMessage))

	d = s.gate.Admit(ctx, "p1", quota.OperationChat, t0.Add(2*time.Minute))
	require.False(t, d.Admitted)
	assert.Equal(t, quota.ReasonCostLimitExceeded, d.Reason)
	assert.InDelta(t, 1.05, *d.CostCurrentUSD, 1e-9)
	assert.InDelta(t, 1.0, *d.CostLimitUSD, 1e-9)

	// the next UTC day starts from zero
	d = s.gate.Admit(ctx, "p1", quota.OperationChat, t0.Add(24*time.Hour))
	assert.True(t, d.Admitted)
}

func TestScenario_CostDenialLeavesWindowsUntouched(t *testing.T) {
	s := newStack(t, standardChat)
	ctx := context.Background()

	_, err := s.ledger.AddCost(ctx, "p1", 1.0, t0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		d := s.gate.Admit(ctx, "p1", quota.OperationChat, t0)
		require.False(t, d.Admitted)
		assert.Equal(t, quota.ReasonCostLimitExceeded, d.Reason)
	}
	n, err := s.windows.Count(ctx, "p1", quota.OperationChat, quota.WindowMinute, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScenario_RateDenialWritesNoCost(t *testing.T) {
	s := newStack(t, standardChat)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		s.gate.Admit(ctx, "p1", quota.OperationChat, t0)
	}
	assert.False(t, s.m.Exists(s.ledger.Key("p1", t0)))
}

func TestScenario_ConcurrentBurst(t *testing.T) {
	s := newStack(t, `
fallback_tier: standard
tiers:
  standard:
    daily_cost_limit_usd: 100
    operations:
      chat:
        per_minute: 20
pricing:
  flat:
    usd_per_1k_prompt_tokens: 1.0
`)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		denied   []*quota.Decision
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := s.gate.Admit(ctx, "p1", quota.OperationChat, t0)
			mu.Lock()
			defer mu.Unlock()
			if d.Admitted {
				admitted++
			} else {
				denied = append(denied, d)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, admitted)
	require.Len(t, denied, 30)
	for _, d := range denied {
		assert.Equal(t, quota.ReasonRateLimitedMinute, d.Reason)
		// every admitted entry carries t0, so the oldest leaves the window 60s later
		assert.Equal(t, 60, *d.RetryAfterSeconds)
	}
}

func TestScenario_StoreOutage(t *testing.T) {
	s := newStack(t, standardChat)
	s.m.Close()

	// the cost check fails closed even though windows fail open
	d := s.gate.Admit(context.Background(), "p1", quota.OperationChat, t0)
	require.False(t, d.Admitted)
	assert.Equal(t, quota.ReasonCostLimitExceeded, d.Reason)

	// budget writes are swallowed
	s.updater.RecordUsage(context.Background(), "p1", quota.OperationChat, dollars(0.1), t0)
	assert.NoError(t, s.updater.Close(context.Background()))
}
