package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	rootDir string
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "spoc",
	Short: "Agentic codebase analysis",
	Long: `spoc analyzes repositories with an iterative plan, execute, validate loop.

A run decomposes the request into a dependency graph of analysis tasks,
executes the ready ones, validates the results and adds corrective tasks
until the goal is met or the iteration ceiling is reached. Results and
ingested repositories are kept in .spoc/ under the working root.

Typical flow:
  spoc ingest ./service-a ./service-b
  spoc analyze ./service-a --request "explain the architecture"
  spoc org --request "compare our services"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
			color.NoColor = true
		}
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Working root holding .spoc/ (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write the orchestrator debug log to .spoc/logs")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
