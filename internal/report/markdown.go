// Package report renders analysis results as markdown, terminal output,
// HTML and YAML.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// Markdown renders res as a markdown document.
func Markdown(res *models.AnalysisResult) string {
	var b strings.Builder
	data := models.Result(res.Data)

	title := "Analysis Report"
	switch res.AnalysisType {
	case orchestrator.AnalysisTypeRepository:
		if repo, _ := data["repository"].(string); repo != "" {
			title = "Repository Analysis: " + repo
		} else {
			title = "Repository Analysis"
		}
	case orchestrator.AnalysisTypeOrganization:
		title = "Organization Analysis"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	status := "succeeded"
	if !res.Success {
		status = "failed"
	}
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Status | %s |\n", status)
	fmt.Fprintf(&b, "| Confidence | %.0f%% |\n", res.Confidence*100)
	fmt.Fprintf(&b, "| Duration | %s |\n", res.ExecutionTime.Round(time.Millisecond))
	if !res.Timestamp.IsZero() {
		fmt.Fprintf(&b, "| Completed | %s |\n", res.Timestamp.Format(time.RFC3339))
	}
	if n, ok := models.ToFloat(res.Metadata["iterations"]); ok {
		fmt.Fprintf(&b, "| Iterations | %d |\n", int(n))
	}
	b.WriteString("\n")

	writeList(&b, "Errors", res.Errors)
	writeList(&b, "Warnings", res.Warnings)

	if res.Success {
		switch res.AnalysisType {
		case orchestrator.AnalysisTypeOrganization:
			writeOrganization(&b, data)
		default:
			writeRepository(&b, data)
		}
	} else if len(res.Data) > 0 {
		b.WriteString("## Partial Results\n\n")
		writeValue(&b, map[string]interface{}(res.Data), 0)
		b.WriteString("\n")
	}
	return b.String()
}

func writeRepository(b *strings.Builder, data models.Result) {
	if summary, _ := data["architecture_summary"].(string); summary != "" {
		b.WriteString("## Summary\n\n")
		for _, line := range strings.Split(summary, "\n") {
			fmt.Fprintf(b, "%s  \n", line)
		}
		b.WriteString("\n")
	}
	writeSection(b, "Components", data["components"])
	writeSection(b, "Patterns", data["patterns"])
	writeSection(b, "Tech Stack", data["tech_stack"])
	writeSection(b, "Recommendations", data["recommendations"])
	if mermaid, _ := data["mermaid_diagram"].(string); strings.TrimSpace(mermaid) != "" {
		fmt.Fprintf(b, "## Architecture Diagram\n\n```mermaid\n%s\n```\n\n", strings.TrimSpace(mermaid))
	}
}

func writeOrganization(b *strings.Builder, data models.Result) {
	summary := models.Result(data.Map("summary"))
	if n, ok := models.ToFloat(summary["total_repos_analyzed"]); ok {
		fmt.Fprintf(b, "Repositories analyzed: **%d**\n\n", int(n))
	}
	writeSection(b, "Dominant Patterns", summary["dominant_patterns"])
	writeSection(b, "Primary Technologies", summary["primary_technologies"])

	recs := models.Result(data.Map("recommendations"))
	writeSection(b, "Immediate Actions", recs["immediate_actions"])
	writeSection(b, "Long-Term Goals", recs["long_term_goals"])
	writeSection(b, "Team Insights", data["team_insights"])
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// writeSection renders v under a heading, skipping empty values.
func writeSection(b *strings.Builder, heading string, v interface{}) {
	if isEmpty(v) {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	writeValue(b, v, 0)
	b.WriteString("\n")
}

// writeValue renders mappings as nested bullets in key order, lists as
// bullets and scalars inline.
func writeValue(b *strings.Builder, v interface{}, depth int) {
	indent := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case map[string]interface{}:
		for _, k := range sortedKeys(val) {
			writeEntry(b, indent, k, val[k], depth)
		}
	case models.Result:
		writeValue(b, map[string]interface{}(val), depth)
	case map[string][]string:
		for _, k := range sortedKeys(val) {
			writeEntry(b, indent, k, val[k], depth)
		}
	case map[string]int:
		keys := sortedKeys(val)
		sort.SliceStable(keys, func(i, j int) bool { return val[keys[i]] > val[keys[j]] })
		for _, k := range keys {
			fmt.Fprintf(b, "%s- %s (%d)\n", indent, k, val[k])
		}
	case map[string]map[string]int:
		for _, k := range sortedKeys(val) {
			writeEntry(b, indent, k, val[k], depth)
		}
	case []string, []interface{}:
		for _, item := range toList(val) {
			if isScalar(item) {
				fmt.Fprintf(b, "%s- %s\n", indent, scalar(item))
			} else {
				fmt.Fprintf(b, "%s-\n", indent)
				writeValue(b, item, depth+1)
			}
		}
	default:
		fmt.Fprintf(b, "%s- %s\n", indent, scalar(val))
	}
}

func writeEntry(b *strings.Builder, indent, key string, v interface{}, depth int) {
	if isScalar(v) {
		fmt.Fprintf(b, "%s- **%s**: %s\n", indent, key, scalar(v))
		return
	}
	fmt.Fprintf(b, "%s- **%s**\n", indent, key)
	writeValue(b, v, depth+1)
}

func toList(v interface{}) []interface{} {
	switch l := v.(type) {
	case []interface{}:
		return l
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, models.Result, map[string][]string, map[string]int,
		map[string]map[string]int, []string, []interface{}:
		return false
	}
	return true
}

func scalar(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.4g", s)
	case time.Duration:
		return s.Round(time.Millisecond).String()
	default:
		return fmt.Sprint(s)
	}
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	case models.Result:
		return len(val) == 0
	case map[string][]string:
		return len(val) == 0
	case map[string]int:
		return len(val) == 0
	case map[string]map[string]int:
		return len(val) == 0
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
