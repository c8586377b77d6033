package health_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/health"
)

func TestRedisHealthChecker(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	checker := health.NewRedisHealthChecker(client)
	assert.Equal(t, "redis", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	m.Close()
	err := checker.Check(context.Background())
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "shared counter store")
	}
}
