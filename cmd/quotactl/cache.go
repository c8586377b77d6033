package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/redis"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared principal role cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush <principal>...",
	Short: "Drop cached roles so the next admission re-reads the directory",
	Long: `Drop the cached directory role of each principal from the shared Redis cache.
Use it after changing a principal's role. Instances may still serve the old tier
from their local cache until TIER_CACHE_TTL expires.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if limitsFile != "" {
			if err := os.Setenv("LIMITS_FILE", limitsFile); err != nil {
				return err
			}
		}
		cfg, err := configs.Load()
		if err != nil {
			return err
		}
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return flushPrincipals(ctx, cmd.OutOrStdout(), client, args)
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}

func flushPrincipals(ctx context.Context, w io.Writer, client goredis.Cmdable, principals []string) error {
	// only the cache is touched, never the directory itself
	dir := repositories.NewCachingPrincipalDirectory(nil, redis.NewRedisCache(client, repositories.DirectoryCachePrefix), 0)
	for _, p := range principals {
		if err := dir.Invalidate(ctx, p); err != nil {
			return fmt.Errorf("flush %s: %w", p, err)
		}
		fmt.Fprintf(w, "flushed %s\n", p)
	}
	return nil
}
