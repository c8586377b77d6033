package configs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIMITS_FILE", "")
	t.Setenv("GATE_WINDOW_FAILURE_POLICY", "")
	t.Setenv("COST_WARNING_THRESHOLD", "")
	t.Setenv("GATE_DIRECTORY_TIMEOUT", "")

	cfg, err := configs.Load()
	require.NoError(t, err)

	assert.Equal(t, configs.PolicyFailOpen, cfg.Gate.WindowFailurePolicy)
	assert.Equal(t, 300*time.Millisecond, cfg.Gate.StoreTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Gate.DirectoryTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Gate.BudgetWriteTimeout)
	assert.InDelta(t, 0.8, cfg.Gate.CostWarningThreshold, 1e-9)
	assert.Equal(t, "ratelimit", cfg.Gate.WindowKeyPrefix)
	require.NotNil(t, cfg.Limits)
	assert.NotEmpty(t, cfg.Limits.OperationClasses())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIMITS_FILE", "")
	t.Setenv("GATE_WINDOW_FAILURE_POLICY", "fail_closed")
	t.Setenv("GATE_STORE_TIMEOUT", "1s")
	t.Setenv("GATE_DIRECTORY_TIMEOUT", "150ms")
	t.Setenv("COST_WARNING_THRESHOLD", "0.5")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := configs.Load()
	require.NoError(t, err)
	assert.Equal(t, configs.PolicyFailClosed, cfg.Gate.WindowFailurePolicy)
	assert.Equal(t, time.Second, cfg.Gate.StoreTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Gate.DirectoryTimeout)
	assert.InDelta(t, 0.5, cfg.Gate.CostWarningThreshold, 1e-9)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
}

func TestLoad_RejectsBadGateSettings(t *testing.T) {
	t.Setenv("LIMITS_FILE", "")

	t.Setenv("GATE_WINDOW_FAILURE_POLICY", "maybe")
	_, err := configs.Load()
	assert.Error(t, err)

	t.Setenv("GATE_WINDOW_FAILURE_POLICY", "fail_open")
	t.Setenv("COST_WARNING_THRESHOLD", "1.5")
	_, err = configs.Load()
	assert.Error(t, err)

	t.Setenv("COST_WARNING_THRESHOLD", "0.8")
	t.Setenv("GATE_DIRECTORY_TIMEOUT", "0s")
	_, err = configs.Load()
	assert.Error(t, err)
}
