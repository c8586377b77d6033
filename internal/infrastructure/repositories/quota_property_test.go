package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
)

func TestWindowCounter_AdmitsExactlyMinOfLimitAndRequests(t *testing.T) {
	_, client := newRedis(t)
	repo := repositories.NewWindowCounterRedisRepository(client, "prop")
	ctx := context.Background()
	run := 0

	rapid.Check(t, func(rt *rapid.T) {
		run++
		principal := fmt.Sprintf("p-%d", run)
		limit := rapid.IntRange(1, 15).Draw(rt, "limit")
		requests := rapid.IntRange(0, 25).Draw(rt, "requests")
		windows := []quota.WindowLimit{{Kind: quota.WindowMinute, Limit: limit}}

		admitted := 0
		for i := 0; i < requests; i++ {
			now := t0.Add(time.Duration(i) * time.Second)
			res, err := repo.Commit(ctx, principal, quota.OperationChat, windows, now)
			if err != nil {
				rt.Fatalf("commit: %v", err)
			}
			if res.Allowed {
				admitted++
				continue
			}
			if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
				rt.Fatalf("retry after %s outside (0, 1m]", res.RetryAfter)
			}
		}
		if want := min(limit, requests); admitted != want {
			rt.Fatalf("admitted %d, want %d", admitted, want)
		}
	})
}

func TestWindowCounter_PeekIsSideEffectFree(t *testing.T) {
	_, client := newRedis(t)
	repo := repositories.NewWindowCounterRedisRepository(client, "prop")
	ctx := context.Background()
	run := 0

	rapid.Check(t, func(rt *rapid.T) {
		run++
		principal := fmt.Sprintf("peek-%d", run)
		recorded := rapid.IntRange(0, 10).Draw(rt, "recorded")
		peeks := rapid.IntRange(1, 10).Draw(rt, "peeks")
		windows := []quota.WindowLimit{{Kind: quota.WindowHour, Limit: 100}}

		for i := 0; i < recorded; i++ {
			if _, err := repo.Commit(ctx, principal, quota.OperationHint, windows, t0); err != nil {
				rt.Fatalf("commit: %v", err)
			}
		}
		for i := 0; i < peeks; i++ {
			if _, err := repo.Peek(ctx, principal, quota.OperationHint, windows, t0); err != nil {
				rt.Fatalf("peek: %v", err)
			}
		}
		n, err := repo.Count(ctx, principal, quota.OperationHint, quota.WindowHour, t0)
		if err != nil {
			rt.Fatalf("count: %v", err)
		}
		if n != recorded {
			rt.Fatalf("count %d after %d peeks, want %d", n, peeks, recorded)
		}
	})
}

func TestCostLedger_WouldExceedIsIdempotent(t *testing.T) {
	_, client := newRedis(t)
	repo := repositories.NewCostLedgerRedisRepository(client, "prop", time.Hour)
	ctx := context.Background()
	run := 0

	rapid.Check(t, func(rt *rapid.T) {
		run++
		principal := fmt.Sprintf("cost-%d", run)
		spent := rapid.Float64Range(0, 5).Draw(rt, "spent")
		limit := rapid.Float64Range(0.01, 5).Draw(rt, "limit")
		reads := rapid.IntRange(2, 8).Draw(rt, "reads")

		if spent > 0 {
			if _, err := repo.AddCost(ctx, principal, spent, t0); err != nil {
				rt.Fatalf("add: %v", err)
			}
		}
		first, firstTotal, err := repo.WouldExceed(ctx, principal, limit, t0)
		if err != nil {
			rt.Fatalf("would exceed: %v", err)
		}
		for i := 1; i < reads; i++ {
			exceeded, total, err := repo.WouldExceed(ctx, principal, limit, t0)
			if err != nil {
				rt.Fatalf("would exceed: %v", err)
			}
			if exceeded != first || total != firstTotal {
				rt.Fatalf("read %d returned (%v, %v), first was (%v, %v)", i, exceeded, total, first, firstTotal)
			}
		}
		if first != (firstTotal >= limit) {
			rt.Fatalf("exceeded=%v with total %v and limit %v", first, firstTotal, limit)
		}
	})
}

func TestWindowCounter_SlidesPastWindowLength(t *testing.T) {
	_, client := newRedis(t)
	repo := repositories.NewWindowCounterRedisRepository(client, "slide")
	ctx := context.Background()
	run := 0

	rapid.Check(t, func(rt *rapid.T) {
		run++
		principal := fmt.Sprintf("p-%d", run)
		kind := rapid.SampledFrom(quota.WindowKinds).Draw(rt, "kind")
		limit := rapid.IntRange(1, 10).Draw(rt, "limit")
		windows := []quota.WindowLimit{{Kind: kind, Limit: limit}}

		for i := 0; i < limit; i++ {
			if _, err := repo.Commit(ctx, principal, quota.OperationChat, windows, t0); err != nil {
				rt.Fatalf("commit: %v", err)
			}
		}
		full, err := repo.Peek(ctx, principal, quota.OperationChat, windows, t0.Add(time.Millisecond))
		if err != nil {
			rt.Fatalf("peek: %v", err)
		}
		if full.Allowed {
			rt.Fatalf("window of %d admitted a request beyond the limit", limit)
		}

		later := t0.Add(kind.Duration() + time.Second)
		res, err := repo.Commit(ctx, principal, quota.OperationChat, windows, later)
		if err != nil {
			rt.Fatalf("commit: %v", err)
		}
		if !res.Allowed {
			rt.Fatalf("request one second past the %s window was denied", kind)
		}
	})
}
