package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/history"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

var (
	historyLimit  int
	historyDelete bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded analysis runs",
	Long: `Without arguments, list recent runs newest first.
With a run ID, show the run and the final state of each of its tasks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyDelete, "delete", false, "Delete the given run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if len(args) == 1 {
		if historyDelete {
			if err := a.history.DeleteRun(ctx, args[0]); err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Deleted run %s", args[0]), color.FgGreen)
			return nil
		}
		run, err := a.history.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		displayRun(run)
		return nil
	}

	runs, err := a.history.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded. Run 'spoc analyze <path>' to start.")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %s  %-12s %s  conf %.2f  %2d iter  %8s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Kind,
			outcome(run.Success),
			run.Confidence,
			run.Iterations,
			run.Duration.Round(1e8),
			truncate(run.Request, 40),
		)
	}
	return nil
}

func displayRun(run *history.Run) {
	fmt.Printf("Run:        %s\n", run.ID)
	fmt.Printf("Goal:       %s\n", run.GoalID)
	fmt.Printf("Kind:       %s\n", run.Kind)
	fmt.Printf("Request:    %s\n", run.Request)
	if len(run.Targets) > 0 {
		fmt.Printf("Targets:    %s\n", strings.Join(run.Targets, ", "))
	}
	fmt.Printf("Outcome:    %s\n", outcome(run.Success))
	fmt.Printf("Confidence: %.2f\n", run.Confidence)
	fmt.Printf("Completion: %.0f%%\n", run.Completion)
	fmt.Printf("Iterations: %d\n", run.Iterations)
	fmt.Printf("Started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:   %s\n", run.Duration)
	for _, e := range run.Errors {
		printStatus("✗", e, color.FgRed)
	}

	if len(run.Tasks) == 0 {
		return
	}
	fmt.Println("\nTasks:")
	for _, t := range run.Tasks {
		line := fmt.Sprintf("%-36s %-22s %-10s retries %d  conf %.2f  %s",
			t.TaskID, t.TaskType, t.Status, t.RetryCount, t.Confidence, t.Duration.Round(1e6))
		if t.Error != "" {
			line += "  " + color.RedString(t.Error)
		}
		fmt.Println("  " + line)
	}
}

func outcome(success bool) string {
	if success {
		return color.GreenString("ok    ")
	}
	return color.RedString("failed")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return models.TruncateUTF8(s, n-3) + "..."
}
