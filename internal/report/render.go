package report

import (
	"bytes"
	"fmt"
	"html"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.yaml.in/yaml/v3"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// Format names accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatTerminal = "terminal"
	FormatHTML     = "html"
	FormatYAML     = "yaml"
	FormatJSON     = "json"
)

// DefaultWordWrap is the terminal wrap width.
const DefaultWordWrap = 80

// RenderTerminal styles markdown for a terminal. style is a glamour style
// name ("dark", "light", "notty"); empty picks one from the terminal.
func RenderTerminal(markdown, style string, width int) (string, error) {
	if width <= 0 {
		width = DefaultWordWrap
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// RenderHTML converts markdown to a standalone HTML page.
func RenderHTML(markdown, title string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body.String()), nil
}

// yamlReport is the YAML shape of an AnalysisResult.
type yamlReport struct {
	Success       bool                   `yaml:"success"`
	AnalysisType  string                 `yaml:"analysis_type"`
	Confidence    float64                `yaml:"confidence"`
	Timestamp     string                 `yaml:"timestamp,omitempty"`
	ExecutionTime string                 `yaml:"execution_time"`
	Errors        []string               `yaml:"errors,omitempty"`
	Warnings      []string               `yaml:"warnings,omitempty"`
	Metadata      map[string]interface{} `yaml:"metadata,omitempty"`
	Data          map[string]interface{} `yaml:"data"`
}

// YAML encodes res with durations as strings and timestamps in RFC 3339.
func YAML(res *models.AnalysisResult) ([]byte, error) {
	out := yamlReport{
		Success:       res.Success,
		AnalysisType:  res.AnalysisType,
		Confidence:    res.Confidence,
		ExecutionTime: res.ExecutionTime.Round(time.Millisecond).String(),
		Errors:        res.Errors,
		Warnings:      res.Warnings,
		Metadata:      res.Metadata,
		Data:          res.Data,
	}
	if !res.Timestamp.IsZero() {
		out.Timestamp = res.Timestamp.Format(time.RFC3339)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return data, nil
}
