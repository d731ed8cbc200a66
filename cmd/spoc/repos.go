package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/ingest"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Inspect the knowledge store",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored repositories, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		repos, err := a.knowledge.ListRepositories(cmd.Context())
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories stored.")
			return nil
		}
		for _, r := range repos {
			fmt.Printf("%-30s %s\n", r.Name, r.AnalyzedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var reposShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show what is stored for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		k, err := a.knowledge.GetRepositoryKnowledge(ctx, args[0])
		if err != nil {
			return err
		}
		if k.Empty() {
			return fmt.Errorf("repository %q is not stored", args[0])
		}

		fmt.Printf("%s: %d files\n", color.New(color.Bold).Sprint(args[0]), len(k.FileStructure))
		if summary, _ := k.Analysis["architecture_summary"].(string); summary != "" {
			fmt.Printf("\n%s\n", strings.TrimSpace(summary))
		}
		printLayout(k.FileContents)
		if k.MermaidDiagram != "" {
			fmt.Printf("\n%s\n", k.MermaidDiagram)
		}

		features, err := a.knowledge.ListFeatureSuggestions(ctx, args[0])
		if err != nil {
			return err
		}
		if len(features) > 0 {
			fmt.Printf("\nFeature suggestions:\n")
			for _, f := range features {
				fmt.Printf("  %s  %s\n", f.CreatedAt.Local().Format("2006-01-02"), f.Description)
			}
		}
		return nil
	},
}

var reposDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a repository with its features and chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if _, err := a.knowledge.ClearChatHistory(ctx, args[0], ""); err != nil {
			return err
		}
		if err := a.knowledge.DeleteRepository(ctx, args[0]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Deleted %s", args[0]), color.FgGreen)
		return nil
	},
}

var reposPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show frequency counts aggregated over all stored repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.knowledge.GetOrganizationPatterns(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

// printLayout prints the directory conventions detected in data.
func printLayout(data models.RepositoryData) {
	rules := ingest.DetectLayout(data)
	if len(rules) == 0 {
		return
	}
	fmt.Printf("\nLayout:\n")
	for _, r := range rules {
		fmt.Printf("  %-28s %s\n", r.Directory+"/", r.Description)
	}
}

func init() {
	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposShowCmd)
	reposCmd.AddCommand(reposDeleteCmd)
	reposCmd.AddCommand(reposPatternsCmd)
}
