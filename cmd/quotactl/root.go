package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	limitsFile   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "quotactl",
	Short: "Inspect quota gate limits and usage",
	Long: `quotactl reads the same environment and limits file as the quota gate server.

It never records admissions or spend. The only write is "cache flush", which drops
cached principal roles.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&limitsFile, "limits", "", "limits file (defaults to LIMITS_FILE or the built-in table)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json (usage) or yaml (limits)")
}
