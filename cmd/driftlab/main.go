package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "driftlab",
	Short: "driftlab - post-earnings drift backtester",
	Long: `driftlab backtests a post-earnings-announcement drift rule: three months
after each earnings date, enter if the stock's return since the announcement
clears a threshold, and hold for nine more months. Results are compared
against an equal-weight baseline and a benchmark.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
