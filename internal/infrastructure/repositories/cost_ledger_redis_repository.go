package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

// addCostScript increments the day's accumulator and pins its absolute expiry in the same
// call, so the key never exists without a TTL.
var addCostScript = redis.NewScript(`
local total = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return total
`)

// CostLedgerRedisRepository stores one float accumulator per principal and UTC day.
type CostLedgerRedisRepository struct {
	r      redis.Cmdable
	prefix string
	margin time.Duration
}

func NewCostLedgerRedisRepository(r redis.Cmdable, keyPrefix string, safetyMargin time.Duration) *CostLedgerRedisRepository {
	if keyPrefix == "" {
		keyPrefix = "costledger"
	}
	return &CostLedgerRedisRepository{r: r, prefix: keyPrefix, margin: safetyMargin}
}

func (repo *CostLedgerRedisRepository) Key(principalID string, day time.Time) string {
	return fmt.Sprintf("%s:{%s}:%s", repo.prefix, principalID, quota.Day(day))
}

func (repo *CostLedgerRedisRepository) warnedKey(principalID string, day time.Time) string {
	return repo.Key(principalID, day) + ":warned"
}

// ExpiresAt is the absolute expiry shared by a day's record and its warning marker.
func (repo *CostLedgerRedisRepository) ExpiresAt(day time.Time) time.Time {
	return quota.DayStart(day).Add(24*time.Hour + repo.margin)
}

func (repo *CostLedgerRedisRepository) AddCost(ctx context.Context, principalID string, amount float64, day time.Time) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative cost %v", amount)
	}
	res, err := addCostScript.Run(ctx, repo.r,
		[]string{repo.Key(principalID, day)},
		strconv.FormatFloat(amount, 'f', -1, 64),
		repo.ExpiresAt(day).UnixMilli(),
	).Text()
	if err != nil {
		return 0, fmt.Errorf("%w: add cost: %w", quota.ErrStoreUnavailable, err)
	}
	total, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse cost total %q: %w", quota.ErrStoreUnavailable, res, err)
	}
	return total, nil
}

// GetCost returns zero for a day with no spend.
func (repo *CostLedgerRedisRepository) GetCost(ctx context.Context, principalID string, day time.Time) (float64, error) {
	v, err := repo.r.Get(ctx, repo.Key(principalID, day)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get cost: %w", quota.ErrStoreUnavailable, err)
	}
	return v, nil
}

func (repo *CostLedgerRedisRepository) WouldExceed(ctx context.Context, principalID string, dailyLimit float64, day time.Time) (bool, float64, error) {
	current, err := repo.GetCost(ctx, principalID, day)
	if err != nil {
		return true, 0, err
	}
	return current >= dailyLimit, current, nil
}

func (repo *CostLedgerRedisRepository) MarkWarned(ctx context.Context, principalID string, day time.Time) (bool, error) {
	key := repo.warnedKey(principalID, day)
	pipe := repo.r.TxPipeline()
	set := pipe.SetNX(ctx, key, 1, 0)
	pipe.PExpireAt(ctx, key, repo.ExpiresAt(day))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: mark warned: %w", quota.ErrStoreUnavailable, err)
	}
	return set.Val(), nil
}
