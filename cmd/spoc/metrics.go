package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/history"
)

var metricsRuns int

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print run, task, tool, cache and knowledge metrics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		runs, err := runMetrics(ctx, a.history, metricsRuns)
		if err != nil {
			return err
		}
		orch, err := a.newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer orch.Close()

		cacheStats, err := a.cache.Stats()
		if err != nil {
			return err
		}
		repos, err := a.knowledge.ListRepositories(ctx)
		if err != nil {
			return err
		}

		return printJSON(map[string]interface{}{
			"runs":      runs,
			"tools":     orch.Registry().Metrics(),
			"cache":     cacheStats,
			"knowledge": map[string]interface{}{"repositories": len(repos)},
		})
	},
}

func init() {
	metricsCmd.Flags().IntVarP(&metricsRuns, "runs", "n", 50, "Number of recent runs to aggregate (0 for all)")
}

// runMetrics aggregates the most recent runs and their task outcomes.
func runMetrics(ctx context.Context, store *history.Store, limit int) (map[string]interface{}, error) {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return map[string]interface{}{"total_runs": 0}, nil
	}

	var (
		succeeded  int
		confidence float64
		iterations int
		duration   time.Duration
	)
	taskStatus := make(map[string]int)
	taskTypeFailures := make(map[string]int)
	for _, run := range runs {
		if run.Success {
			succeeded++
		}
		confidence += run.Confidence
		iterations += run.Iterations
		duration += run.Duration

		tasks, err := store.TaskOutcomes(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			taskStatus[t.Status]++
			if t.Error != "" {
				taskTypeFailures[t.TaskType]++
			}
		}
	}

	n := float64(len(runs))
	return map[string]interface{}{
		"total_runs":       len(runs),
		"success_rate":     float64(succeeded) / n,
		"avg_confidence":   confidence / n,
		"avg_iterations":   float64(iterations) / n,
		"avg_duration":     (duration / time.Duration(len(runs))).Round(time.Millisecond).String(),
		"task_status":      taskStatus,
		"failures_by_type": taskTypeFailures,
		"last_run":         runs[0].StartedAt,
	}, nil
}
