package quota_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

func TestReason_IsRateLimit(t *testing.T) {
	for _, r := range []quota.Reason{quota.ReasonRateLimitedMinute, quota.ReasonRateLimitedHour, quota.ReasonRateLimitedDay} {
		assert.True(t, r.IsRateLimit(), r)
	}
	assert.False(t, quota.ReasonCostLimitExceeded.IsRateLimit())
	assert.False(t, quota.ReasonOK.IsRateLimit())
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, quota.NewAdmitted(quota.TierStandard, 10, 3).Err())

	err := quota.NewRateLimited(quota.TierStandard, quota.WindowHour, 60, 90*time.Second).Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, quota.ErrRateLimitExceeded))
	var le *quota.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, quota.ReasonRateLimitedHour, le.Reason)
	assert.InDelta(t, 60, le.Limit, 1e-9)
	assert.Equal(t, 90*time.Second, le.RetryAfter)

	err = quota.NewCostLimited(quota.TierStandard, 1, 1.05, time.Hour).Err()
	assert.True(t, errors.Is(err, quota.ErrCostLimitExceeded))
	assert.False(t, errors.Is(err, quota.ErrRateLimitExceeded))
	assert.Contains(t, err.Error(), "resets at UTC midnight")
	assert.Contains(t, err.Error(), "spent 1.0500 of 1.0000 USD")
}

func TestRetryAfterSeconds_RoundsUpToOne(t *testing.T) {
	assert.Equal(t, 1, quota.RetryAfterSeconds(0))
	assert.Equal(t, 1, quota.RetryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 43, quota.RetryAfterSeconds(42*time.Second+time.Millisecond))
}
