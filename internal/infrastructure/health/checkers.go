package health

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
	infraDB "github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/db"
)

// dbHealthChecker pings the principal directory.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// redisHealthChecker pings the shared counter store.
type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("shared counter store: %w", err)
	}
	return nil
}

func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}
