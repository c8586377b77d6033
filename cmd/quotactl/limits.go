package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Print the limits table",
	Long:  `Print the per-tier window limits, daily budgets and role mapping after validation.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLimits()
		if err != nil {
			return err
		}
		return renderLimits(cmd.OutOrStdout(), l, outputFormat)
	},
}

func init() {
	rootCmd.AddCommand(limitsCmd)
}

func loadLimits() (*configs.LimitsConfig, error) {
	path := limitsFile
	if path == "" {
		path = os.Getenv("LIMITS_FILE")
	}
	return configs.LoadLimits(path)
}

func renderLimits(w io.Writer, l *configs.LimitsConfig, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(l)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q for limits", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tOPERATION\tPER_MINUTE\tPER_HOUR\tPER_DAY\tDAILY_COST_USD")
	for _, tier := range l.TierNames() {
		for _, op := range l.OperationClasses() {
			spec, ok := l.Spec(tier, op)
			if !ok {
				fmt.Fprintf(tw, "%s\t%s\t(fallback)\t\t\t\n", tier, op)
				continue
			}
			if spec.Unconstrained {
				fmt.Fprintf(tw, "%s\t%s\tunconstrained\t-\t-\t%s\n", tier, op, costCell(spec.DailyCostLimit))
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", tier, op,
				limitCell(spec, quota.WindowMinute), limitCell(spec, quota.WindowHour), limitCell(spec, quota.WindowDay),
				costCell(spec.DailyCostLimit))
		}
	}
	fmt.Fprintf(tw, "\nfallback tier: %s\n", l.FallbackTier)
	return tw.Flush()
}

func limitCell(spec quota.LimitSpec, kind quota.WindowKind) string {
	n, ok := spec.Limit(kind)
	if !ok {
		return "-"
	}
	return strconv.Itoa(n)
}

func costCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
