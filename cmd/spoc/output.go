package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/jayasaisrikar/spoc-agent/internal/report"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult formats res. The terminal format falls back to plain
// markdown when color is off.
func renderResult(res *models.AnalysisResult, format string) ([]byte, error) {
	switch format {
	case report.FormatJSON:
		return json.MarshalIndent(res, "", "  ")
	case report.FormatYAML:
		return report.YAML(res)
	case report.FormatHTML:
		out, err := report.RenderHTML(report.Markdown(res), res.AnalysisType)
		return []byte(out), err
	case report.FormatMarkdown:
		return []byte(report.Markdown(res)), nil
	case report.FormatTerminal, "":
		md := report.Markdown(res)
		if color.NoColor {
			return []byte(md), nil
		}
		out, err := report.RenderTerminal(md, "", report.DefaultWordWrap)
		return []byte(out), err
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, markdown, html, yaml or json)", format)
	}
}

// writeResult renders res to path, or stdout when path is empty.
func writeResult(res *models.AnalysisResult, format, path string) error {
	if path != "" && format == report.FormatTerminal {
		format = report.FormatMarkdown
	}
	out, err := renderResult(res, format)
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	if path == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	printStatus("✓", fmt.Sprintf("Report written to %s", path), color.FgGreen)
	return nil
}

// printResultStatus prints the one-line outcome of a run.
func printResultStatus(name string, res *models.AnalysisResult) {
	if res.Success {
		printStatus("✓", fmt.Sprintf("%s: confidence %.2f in %s", name, res.Confidence, res.ExecutionTime.Round(1e6)), color.FgGreen)
		return
	}
	printStatus("✗", fmt.Sprintf("%s: %v", name, res.Errors), color.FgRed)
}
