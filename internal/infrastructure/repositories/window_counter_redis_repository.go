package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

// slidingWindowScript prunes and counts every window, stops at the first exhausted one and,
// when ARGV[2] is "1" and all windows pass, inserts the same member into each of them.
//
// KEYS[i]        window sorted set
// ARGV[1]        now (unix ms)
// ARGV[2]        record flag
// ARGV[3]        entry member
// ARGV[2+2i]     window length (ms) for KEYS[i]
// ARGV[3+2i]     limit for KEYS[i]
//
// Returns {0, i, count, retry_ms} on denial or {1, 0, count_1, ..., count_n} on success,
// counts taken before the insert.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local record = ARGV[2] == '1'
local member = ARGV[3]
local counts = {}
for i, key in ipairs(KEYS) do
  local window = tonumber(ARGV[2 + i * 2])
  local limit = tonumber(ARGV[3 + i * 2])
  redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
  local count = redis.call('ZCARD', key)
  if count >= limit then
    local retry = window
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if oldest[2] then
      retry = window - (now - tonumber(oldest[2]))
    end
    return {0, i, count, retry}
  end
  counts[i] = count
end
if record then
  for i, key in ipairs(KEYS) do
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, ARGV[2 + i * 2])
  end
end
local out = {1, 0}
for i = 1, #counts do
  out[#out + 1] = counts[i]
end
return out
`)

// WindowCounterRedisRepository keeps exact sliding windows as Redis sorted sets scored by
// admission time in milliseconds. Time comes from the caller, so accuracy is bounded by
// clock skew between service instances.
type WindowCounterRedisRepository struct {
	r      redis.Cmdable
	prefix string
}

func NewWindowCounterRedisRepository(r redis.Cmdable, keyPrefix string) *WindowCounterRedisRepository {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &WindowCounterRedisRepository{r: r, prefix: keyPrefix}
}

// Key returns the sorted set holding one window. The hash tag pins every window of a
// (principal, operation class) pair to the same cluster slot.
func (repo *WindowCounterRedisRepository) Key(principalID string, op quota.OperationClass, kind quota.WindowKind) string {
	return fmt.Sprintf("%s:{%s:%s}:%s", repo.prefix, principalID, op, kind)
}

func (repo *WindowCounterRedisRepository) CheckAndRecord(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, limit int, now time.Time) (quota.WindowResult, error) {
	return repo.eval(ctx, principalID, op, []quota.WindowLimit{{Kind: kind, Limit: limit}}, now, true)
}

func (repo *WindowCounterRedisRepository) Peek(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	return repo.eval(ctx, principalID, op, windows, now, false)
}

func (repo *WindowCounterRedisRepository) Commit(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time) (quota.WindowResult, error) {
	return repo.eval(ctx, principalID, op, windows, now, true)
}

// Count is read-only; expired entries are excluded but not pruned.
func (repo *WindowCounterRedisRepository) Count(ctx context.Context, principalID string, op quota.OperationClass, kind quota.WindowKind, now time.Time) (int, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("unknown window kind %q", kind)
	}
	lower := "(" + strconv.FormatInt(now.UnixMilli()-kind.Duration().Milliseconds(), 10)
	n, err := repo.r.ZCount(ctx, repo.Key(principalID, op, kind), lower, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count window: %w", quota.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (repo *WindowCounterRedisRepository) eval(ctx context.Context, principalID string, op quota.OperationClass, windows []quota.WindowLimit, now time.Time, record bool) (quota.WindowResult, error) {
	if len(windows) == 0 {
		return quota.WindowResult{Allowed: true}, nil
	}

	keys := make([]string, 0, len(windows))
	args := make([]interface{}, 0, 3+2*len(windows))
	flag := "0"
	if record {
		flag = "1"
	}
	args = append(args, now.UnixMilli(), flag, uuid.NewString())
	for _, w := range windows {
		if !w.Kind.IsValid() {
			return quota.WindowResult{}, fmt.Errorf("unknown window kind %q", w.Kind)
		}
		keys = append(keys, repo.Key(principalID, op, w.Kind))
		args = append(args, w.Kind.Duration().Milliseconds(), w.Limit)
	}

	raw, err := slidingWindowScript.Run(ctx, repo.r, keys, args...).Slice()
	if err != nil {
		return quota.WindowResult{}, fmt.Errorf("%w: window script: %w", quota.ErrStoreUnavailable, err)
	}
	vals, err := toInt64s(raw)
	if err != nil || len(vals) < 2 {
		return quota.WindowResult{}, fmt.Errorf("%w: unexpected window script reply %v", quota.ErrStoreUnavailable, raw)
	}

	if vals[0] == 0 {
		if len(vals) != 4 || vals[1] < 1 || int(vals[1]) > len(windows) {
			return quota.WindowResult{}, fmt.Errorf("%w: unexpected window script reply %v", quota.ErrStoreUnavailable, raw)
		}
		w := windows[vals[1]-1]
		return quota.WindowResult{
			Allowed:    false,
			Kind:       w.Kind,
			Count:      int(vals[2]),
			Limit:      w.Limit,
			RetryAfter: time.Duration(vals[3]) * time.Millisecond,
		}, nil
	}

	counts := vals[2:]
	if len(counts) != len(windows) {
		return quota.WindowResult{}, fmt.Errorf("%w: unexpected window script reply %v", quota.ErrStoreUnavailable, raw)
	}
	var binding quota.WindowResult
	for i, w := range windows {
		count := int(counts[i])
		if record {
			count++
		}
		res := quota.WindowResult{Allowed: true, Kind: w.Kind, Count: count, Limit: w.Limit}
		if i == 0 || res.Limit-res.Count < binding.Limit-binding.Count {
			binding = res
		}
	}
	return binding, nil
}

func toInt64s(raw []interface{}) ([]int64, error) {
	out := make([]int64, len(raw))
	for i, v := range raw {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("element %d is %T", i, v)
		}
		out[i] = n
	}
	return out, nil
}
