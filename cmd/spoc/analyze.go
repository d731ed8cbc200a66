package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
	"github.com/jayasaisrikar/spoc-agent/internal/report"
	"github.com/jayasaisrikar/spoc-agent/internal/tui"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const defaultRepoRequest = "Analyze the architecture of this repository"

var (
	analyzeRequest  string
	analyzeFormat   string
	analyzeOutput   string
	analyzeTUI      bool
	analyzeParallel int
	analyzeStore    bool
	analyzeMetrics  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>...",
	Short: "Run the orchestrated analysis of one or more repositories",
	Long: `Scan each path and run a single-repository analysis on it.

Several paths are analyzed concurrently (see --parallel). A single path can
be followed live with --tui. Create .spoc/signals/stop under the working
root to stop the active runs at the next iteration boundary.

Formats: terminal (default), markdown, html, yaml, json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeRequest, "request", "r", defaultRepoRequest, "What to analyze")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", report.FormatTerminal, "Output format")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write the report to a file (single path only)")
	analyzeCmd.Flags().BoolVar(&analyzeTUI, "tui", false, "Show live progress (single path, interactive terminal)")
	analyzeCmd.Flags().IntVarP(&analyzeParallel, "parallel", "p", 2, "Concurrent repository analyses")
	analyzeCmd.Flags().BoolVar(&analyzeStore, "store", true, "Store the scanned repository and its analysis")
	analyzeCmd.Flags().BoolVar(&analyzeMetrics, "metrics", false, "Print system metrics after the runs")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) > 1 && (analyzeOutput != "" || analyzeTUI) {
		return fmt.Errorf("--output and --tui need exactly one path")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	jobs := make([]orchestrator.RepositoryJob, 0, len(args))
	for _, path := range args {
		data, err := a.scan(ctx, path)
		if err != nil {
			printStatus("✗", err.Error(), color.FgRed)
			continue
		}
		jobs = append(jobs, orchestrator.RepositoryJob{Name: repoName(path), Data: data, Request: analyzeRequest})
	}
	if len(jobs) == 0 {
		return fmt.Errorf("nothing to analyze")
	}

	var results []orchestrator.JobResult
	if analyzeTUI && isatty.IsTerminal(os.Stdout.Fd()) {
		res, err := runWithTUI(ctx, orch, jobs[0])
		if err != nil {
			return err
		}
		results = []orchestrator.JobResult{{Job: jobs[0], Result: res}}
	} else {
		go followEvents(orch.Events())
		pool := orchestrator.NewAnalysisPool(ctx, orch, analyzeParallel)
		for _, job := range jobs {
			printStatus("→", fmt.Sprintf("Analyzing %s (%d files)", job.Name, len(job.Data)), color.FgCyan)
			pool.Submit(job)
		}
		results = pool.Wait()
	}

	failed := 0
	for _, jr := range results {
		printResultStatus(jr.Job.Name, jr.Result)
		if !jr.Result.Success {
			failed++
		}
		if analyzeStore && jr.Result.Success {
			if err := a.storeAnalysis(ctx, jr.Job, jr.Result); err != nil {
				printStatus("⚠", fmt.Sprintf("store %s: %v", jr.Job.Name, err), color.FgYellow)
			}
		}
		if err := writeResult(jr.Result, analyzeFormat, analyzeOutput); err != nil {
			return err
		}
	}

	if analyzeMetrics {
		if err := printJSON(orch.GetSystemMetrics()); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(results))
	}
	return nil
}

// runWithTUI runs one job under the live progress view.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, job orchestrator.RepositoryJob) (*models.AnalysisResult, error) {
	program, app := tui.NewAnalyzeProgram(job.Name, orch)

	go func() {
		res := orch.AnalyzeRepository(ctx, job.Name, job.Data, job.Request)
		program.Send(tui.DoneMsg{Result: res})
	}()

	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	if res := app.Result(); res != nil {
		return res, nil
	}
	return nil, fmt.Errorf("analysis of %s stopped", job.Name)
}

// followEvents prints task failures and iteration summaries until the
// event channel closes.
func followEvents(events <-chan orchestrator.OrchestratorEvent) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventTaskFailed:
			printStatus("✗", fmt.Sprintf("[%s] %s failed: %v", ev.RunID, ev.TaskType, ev.Error), color.FgRed)
		case orchestrator.EventIterationDone:
			if verbose {
				printStatus("·", fmt.Sprintf("[%s] iteration %d: %.0f%% complete, confidence %.2f",
					ev.RunID, ev.Iteration, ev.Completion, ev.Confidence), color.FgHiBlack)
			}
		case orchestrator.EventReplanned:
			printStatus("↻", fmt.Sprintf("[%s] %d corrective tasks added", ev.RunID, ev.Count), color.FgYellow)
		}
	}
}

// storeAnalysis saves the scanned repository with the synthesized analysis
// so later organization runs can aggregate it.
func (a *app) storeAnalysis(ctx context.Context, job orchestrator.RepositoryJob, res *models.AnalysisResult) error {
	data := models.Result(res.Data)
	analysis := map[string]interface{}{
		"components":            data["components"],
		"architecture_patterns": data["patterns"],
		"tech_stack":            data["tech_stack"],
		"recommendations":       data["recommendations"],
		"architecture_summary":  data["architecture_summary"],
		"confidence":            res.Confidence,
	}
	mermaid, _ := data["mermaid_diagram"].(string)
	_, err := a.knowledge.StoreRepository(ctx, job.Name, job.Data, analysis, mermaid)
	return err
}
