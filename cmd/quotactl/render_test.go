package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	infraredis "github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/redis"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
)

const testLimits = `
fallback_tier: standard
roles:
  student: standard
tiers:
  standard:
    daily_cost_limit_usd: 1.5
    operations:
      chat: {per_minute: 10, per_day: 200}
  elevated:
    operations:
      chat: {unconstrained: true}
pricing:
  default: {usd_per_1k_prompt_tokens: 0.003, usd_per_1k_completion_tokens: 0.015}
`

// rows splits tabwriter output into whitespace-separated fields per line.
func rows(out string) [][]string {
	var r [][]string
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			r = append(r, f)
		}
	}
	return r
}

func TestRenderLimits_Table(t *testing.T) {
	l, err := configs.ParseLimits([]byte(testLimits))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderLimits(&buf, l, "table"))
	got := rows(buf.String())

	assert.Contains(t, got, []string{"standard", "chat", "10", "-", "200", "1.50"})
	assert.Contains(t, got, []string{"elevated", "chat", "unconstrained", "-", "-", "-"})
	assert.Contains(t, got, []string{"fallback", "tier:", "standard"})
}

func TestRenderLimits_YAMLAndUnknownFormat(t *testing.T) {
	l, err := configs.ParseLimits([]byte(testLimits))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderLimits(&buf, l, "yaml"))
	roundTrip, err := configs.ParseLimits(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, l.FallbackTier, roundTrip.FallbackTier)
	assert.Equal(t, l.TierNames(), roundTrip.TierNames())

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Contains(t, doc, "tiers")

	assert.Error(t, renderLimits(&buf, l, "xml"))
}

func TestRenderUsage(t *testing.T) {
	limit := 1.0
	report := &quota.UsageReport{
		PrincipalID:    "p1",
		Tier:           quota.TierStandard,
		Day:            "2024-05-10",
		CostCurrentUSD: 0.25,
		CostLimitUSD:   &limit,
		Operations: []quota.OperationUsage{
			{OperationClass: quota.OperationChat, Windows: []quota.WindowUsage{{Kind: quota.WindowMinute, Count: 3, Limit: 10}}},
			{OperationClass: quota.OperationHint, Unconstrained: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderUsage(&buf, report, "table"))
	out := buf.String()
	assert.Contains(t, out, "spend:     $0.2500 of $1.00")
	got := rows(out)
	assert.Contains(t, got, []string{"chat", "minute", "3", "10"})
	assert.Contains(t, got, []string{"hint", "-", "-", "unconstrained"})

	buf.Reset()
	require.NoError(t, renderUsage(&buf, report, "json"))
	var decoded quota.UsageReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *report, decoded)

	buf.Reset()
	report.CostLimitUSD = nil
	require.NoError(t, renderUsage(&buf, report, "table"))
	assert.Contains(t, buf.String(), "(no budget)")

	assert.Error(t, renderUsage(&buf, report, "yaml"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["limits"])
	assert.True(t, names["usage"])
	assert.True(t, names["cache"])
	assert.NotNil(t, usageCmd.Flags().Lookup("op"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("output"))
}

func TestFlushPrincipals(t *testing.T) {
	m := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	defer client.Close()
	ctx := context.Background()

	cache := infraredis.NewRedisCache(client, repositories.DirectoryCachePrefix)
	require.NoError(t, cache.Set(ctx, "principal:role:p1", []byte(`"admin"`), time.Minute))
	require.NoError(t, cache.Set(ctx, "principal:role:p2", []byte(`"student"`), time.Minute))

	var buf bytes.Buffer
	require.NoError(t, flushPrincipals(ctx, &buf, client, []string{"p1", "p3"}))
	assert.False(t, m.Exists(repositories.DirectoryCachePrefix+":principal:role:p1"))
	assert.True(t, m.Exists(repositories.DirectoryCachePrefix+":principal:role:p2"))
	assert.Equal(t, "flushed p1\nflushed p3\n", buf.String())

	m.Close()
	assert.Error(t, flushPrincipals(ctx, &buf, client, []string{"p2"}))
}
