package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/application/services"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/db"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/redis"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/repositories"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/utils"
)

var usageOperation string

var usageCmd = &cobra.Command{
	Use:   "usage <principal>",
	Short: "Print a principal's spend and window counts for today",
	Long: `Print the principal's resolved tier, today's spend against the daily budget
and the live count of every configured window. Without a reachable directory
database the principal is shown under the fallback tier.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageOperation, "op", "", "only show this operation class")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	if limitsFile != "" {
		if err := os.Setenv("LIMITS_FILE", limitsFile); err != nil {
			return err
		}
	}
	cfg, err := configs.Load()
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Log)

	ops := cfg.Limits.OperationClasses()
	if usageOperation != "" {
		op := quota.OperationClass(usageOperation)
		if !contains(ops, op) {
			return fmt.Errorf("%w: %s", quota.ErrUnknownOperationClass, op)
		}
		ops = []quota.OperationClass{op}
	}

	client, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	var directory ports.PrincipalDirectory
	if database, err := db.NewDatabaseWithConfig(&cfg.Database); err != nil {
		logger.WithError(err).Warn("principal directory unavailable; showing fallback tier")
	} else {
		defer database.Close()
		directory = repositories.NewPrincipalRepository(database.DB, logger)
	}

	resolver := services.NewTierResolverService(directory, cfg.Limits, 0, logger)
	reporter := services.NewUsageReportService(resolver,
		repositories.NewWindowCounterRedisRepository(client, cfg.Gate.WindowKeyPrefix),
		repositories.NewCostLedgerRedisRepository(client, cfg.Gate.CostKeyPrefix, cfg.Gate.CostRecordSafetyMargin),
		logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	report, err := reporter.Report(ctx, args[0], ops, time.Now())
	if err != nil {
		return err
	}
	return renderUsage(cmd.OutOrStdout(), report, outputFormat)
}

func renderUsage(w io.Writer, r *quota.UsageReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q for usage", format)
	}

	fmt.Fprintf(w, "principal: %s\ntier:      %s\nday:       %s (UTC)\n", r.PrincipalID, r.Tier, r.Day)
	if r.CostLimitUSD != nil {
		fmt.Fprintf(w, "spend:     $%.4f of $%.2f\n\n", r.CostCurrentUSD, *r.CostLimitUSD)
	} else {
		fmt.Fprintf(w, "spend:     $%.4f (no budget)\n\n", r.CostCurrentUSD)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tWINDOW\tCOUNT\tLIMIT")
	for _, ou := range r.Operations {
		if ou.Unconstrained {
			fmt.Fprintf(tw, "%s\t-\t-\tunconstrained\n", ou.OperationClass)
			continue
		}
		for _, wu := range ou.Windows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", ou.OperationClass, wu.Kind, wu.Count, wu.Limit)
		}
	}
	return tw.Flush()
}

func contains(ops []quota.OperationClass, op quota.OperationClass) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}
