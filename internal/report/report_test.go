package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

func repoResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Success:      true,
		AnalysisType: orchestrator.AnalysisTypeRepository,
		Confidence:   0.82,
		Data: map[string]interface{}{
			"repository":           "demo",
			"architecture_summary": "A small service.",
			"components":           map[string]interface{}{"store": "persistence layer", "api": "http handlers"},
			"patterns":             []interface{}{"layered"},
			"tech_stack":           map[string]interface{}{"languages": []string{"Go"}},
			"recommendations":      []string{"Add integration tests"},
			"mermaid_diagram":      "graph TD\n  A --> B",
		},
		Metadata:      map[string]interface{}{"iterations": 2},
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ExecutionTime: 1500 * time.Millisecond,
		Warnings:      []string{"low sample size"},
	}
}

func TestMarkdown_Repository(t *testing.T) {
	md := Markdown(repoResult())

	assert.True(t, strings.HasPrefix(md, "# Repository Analysis: demo\n"))
	assert.Contains(t, md, "| Confidence | 82% |")
	assert.Contains(t, md, "| Duration | 1.5s |")
	assert.Contains(t, md, "| Iterations | 2 |")
	assert.Contains(t, md, "## Warnings\n\n- low sample size")
	assert.Contains(t, md, "- **api**: http handlers\n- **store**: persistence layer")
	assert.Contains(t, md, "- **languages**\n  - Go")
	assert.Contains(t, md, "- Add integration tests")
	assert.Contains(t, md, "```mermaid\ngraph TD\n  A --> B\n```")
	assert.NotContains(t, md, "## Errors")
}

func TestMarkdown_Organization(t *testing.T) {
	res := &models.AnalysisResult{
		Success:      true,
		AnalysisType: orchestrator.AnalysisTypeOrganization,
		Confidence:   0.9,
		Data: map[string]interface{}{
			"summary": map[string]interface{}{
				"total_repos_analyzed": 3,
				"dominant_patterns":    map[string][]string{"architecture": {"microservices"}},
			},
			"recommendations": map[string]interface{}{
				"immediate_actions": []string{"Standardize logging"},
				"long_term_goals":   []string{},
			},
			"team_insights": map[string]interface{}{"knowledge_sharing": "high"},
		},
	}
	md := Markdown(res)

	assert.True(t, strings.HasPrefix(md, "# Organization Analysis\n"))
	assert.Contains(t, md, "Repositories analyzed: **3**")
	assert.Contains(t, md, "## Dominant Patterns\n\n- **architecture**\n  - microservices")
	assert.Contains(t, md, "## Immediate Actions\n\n- Standardize logging")
	assert.NotContains(t, md, "## Long-Term Goals")
	assert.Contains(t, md, "- **knowledge_sharing**: high")
}

func TestMarkdown_Failure(t *testing.T) {
	res := &models.AnalysisResult{
		AnalysisType: orchestrator.AnalysisTypeRepository,
		Errors:       []string{"planning failed"},
		Data:         map[string]interface{}{"task_1": map[string]interface{}{"error": "timeout"}},
	}
	md := Markdown(res)

	assert.Contains(t, md, "| Status | failed |")
	assert.Contains(t, md, "## Errors\n\n- planning failed")
	assert.Contains(t, md, "## Partial Results")
	assert.Contains(t, md, "- **error**: timeout")
}

func TestWriteValue_CountsByFrequency(t *testing.T) {
	var b strings.Builder
	writeValue(&b, map[string]int{"go": 1, "python": 5, "rust": 1}, 0)
	assert.Equal(t, "- python (5)\n- go (1)\n- rust (1)\n", b.String())
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", "x <y>")
	require.NoError(t, err)

	assert.Contains(t, out, "<title>x &lt;y&gt;</title>")
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<table>")
}

func TestRenderTerminal(t *testing.T) {
	out, err := RenderTerminal("# Heading\n\nsome body text", "notty", 40)
	require.NoError(t, err)

	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "some body text")
}

func TestYAML(t *testing.T) {
	data, err := YAML(repoResult())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "single_repository", decoded["analysis_type"])
	assert.Equal(t, "1.5s", decoded["execution_time"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["timestamp"])

	body, ok := decoded["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "demo", body["repository"])
}
