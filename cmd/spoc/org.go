package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/report"
)

var (
	orgRequest string
	orgRepos   []string
	orgUser    string
	orgFormat  string
	orgOutput  string
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Analyze patterns across the stored repositories",
	Long: `Run an organization-wide analysis over repositories in the knowledge
store. Without --repos every stored repository is a target. Ingest
repositories first with 'spoc ingest' or 'spoc analyze'.`,
	Args: cobra.NoArgs,
	RunE: runOrg,
}

func init() {
	orgCmd.Flags().StringVarP(&orgRequest, "request", "r", "Analyze architecture patterns across our repositories", "What to analyze")
	orgCmd.Flags().StringSliceVar(&orgRepos, "repos", nil, "Target repositories (default: all stored)")
	orgCmd.Flags().StringVar(&orgUser, "user", "", "User ID recorded in the run preferences")
	orgCmd.Flags().StringVarP(&orgFormat, "format", "f", report.FormatTerminal, "Output format")
	orgCmd.Flags().StringVarP(&orgOutput, "output", "o", "", "Write the report to a file")
}

func runOrg(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	repos, err := a.knowledge.ListRepositories(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		printStatus("⚠", "Knowledge store is empty; run 'spoc ingest <path>' first", color.FgYellow)
	}

	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()
	go followEvents(orch.Events())

	printStatus("→", fmt.Sprintf("Analyzing organization (%d stored repositories)", len(repos)), color.FgCyan)
	res := orch.AnalyzeOrganization(ctx, orgRequest, orgRepos, orgUser)
	printResultStatus("organization", res)
	if err := writeResult(res, orgFormat, orgOutput); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("organization analysis failed")
	}
	return nil
}
