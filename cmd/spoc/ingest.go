package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/ingest"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

var (
	ingestName     string
	ingestAnalyze  bool
	ingestMaxBytes int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Scan repositories into the knowledge store",
	Long: `Scan one or more local directories and store their file structure,
contents and Mermaid diagram in the knowledge store.

With --analyze the AI client also produces a stored analysis (components,
patterns, tech stack), which organization runs aggregate.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Repository name (single path only; default: directory name)")
	ingestCmd.Flags().BoolVar(&ingestAnalyze, "analyze", false, "Run the AI analysis and store it")
	ingestCmd.Flags().IntVar(&ingestMaxBytes, "max-file-bytes", ingest.DefaultMaxContent, "Per-file content limit")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestName != "" && len(args) > 1 {
		return fmt.Errorf("--name needs exactly one path")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	for _, path := range args {
		name := ingestName
		if name == "" {
			name = repoName(path)
		}
		if err := a.ingestOne(ctx, name, path, ingestAnalyze); err != nil {
			printStatus("✗", fmt.Sprintf("%s: %v", name, err), color.FgRed)
			continue
		}
	}
	return nil
}

// ingestOne scans path and stores it under name. It returns the scanned data.
func (a *app) ingestOne(ctx context.Context, name, path string, analyze bool) error {
	data, err := a.scan(ctx, path)
	if err != nil {
		return err
	}

	mermaid, err := a.diagrams.Generate(ctx, data)
	if err != nil {
		return fmt.Errorf("generate diagram: %w", err)
	}
	mermaid = a.diagrams.Optimize(mermaid)

	var analysis map[string]interface{}
	if analyze {
		analysis, err = a.withAI(ctx).AnalyzeRepository(ctx, data, mermaid)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
	}

	hash, err := a.knowledge.StoreRepository(ctx, name, data, analysis, mermaid)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Stored %s (%d files, %s)", name, len(data), hash[:8]), color.FgGreen)
	return nil
}

func (a *app) scan(ctx context.Context, path string) (models.RepositoryData, error) {
	limit := ingestMaxBytes
	if limit <= 0 {
		limit = ingest.DefaultMaxContent
	}
	data, err := ingest.NewScanner(path, limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no supported files under %s", path)
	}
	return data, nil
}

func repoName(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.Base(abs)
}
