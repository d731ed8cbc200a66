package api

import (
	"fmt"
	"path"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const maxHeuristicComponents = 10

// languageExts maps file extensions to the language reported for them.
var languageExts = []struct {
	lang string
	exts []string
}{
	{"JavaScript/TypeScript", []string{".js", ".jsx", ".ts", ".tsx"}},
	{"Python", []string{".py"}},
	{"Java", []string{".java"}},
	{"Go", []string{".go"}},
}

// heuristicAnalysis describes a repository from file names alone.
func heuristicAnalysis(data models.RepositoryData, diagram string) map[string]interface{} {
	paths := data.Paths()

	exts := make(map[string]bool)
	for _, p := range paths {
		exts[strings.ToLower(path.Ext(p))] = true
	}
	languages := []string{}
	for _, l := range languageExts {
		for _, e := range l.exts {
			if exts[e] {
				languages = append(languages, l.lang)
				break
			}
		}
	}

	frameworks := []string{}
	if _, ok := data["package.json"]; ok {
		frameworks = append(frameworks, "Node.js project")
	}
	_, req := data["requirements.txt"]
	_, pyproject := data["pyproject.toml"]
	if req || pyproject {
		frameworks = append(frameworks, "Python project")
	}
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p), "dockerfile") {
			frameworks = append(frameworks, "Containerized application")
			break
		}
	}

	components := paths
	if len(components) > maxHeuristicComponents {
		components = components[:maxHeuristicComponents]
	}

	techText, kind, projectType := "Multiple technologies", "software project", "Mixed/General purpose"
	if len(languages) > 0 {
		techText = strings.Join(languages, ", ")
	}
	if len(frameworks) > 0 {
		kind = frameworks[0]
		projectType = strings.Join(frameworks, ", ")
	}

	var b strings.Builder
	b.WriteString("## Repository Analysis (Based on Available Files)\n\n")
	b.WriteString("**Project Overview:**\n")
	fmt.Fprintf(&b, "- Total files analyzed: %d\n", len(paths))
	fmt.Fprintf(&b, "- Technologies detected: %s\n", techText)
	fmt.Fprintf(&b, "- Project type: %s\n\n", projectType)
	fmt.Fprintf(&b, "This appears to be a %s.\n\n", kind)
	b.WriteString("**Key Components Identified:**\n")
	for _, c := range components {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if len(paths) > maxHeuristicComponents {
		b.WriteString("- ... and more files\n")
	}
	b.WriteString("\n**Recommendations for Feature Development:**\n")
	b.WriteString("1. Follow the existing file organization patterns\n")
	b.WriteString("2. Add new features in directories that match the current structure\n")
	b.WriteString("3. Keep new code consistent with the existing style\n\n")
	b.WriteString("No language model was reachable; configure an API key for a detailed analysis.\n")
	if diagram != "" {
		fmt.Fprintf(&b, "\n```mermaid\n%s\n```\n", diagram)
	}

	return map[string]interface{}{
		"components":            append([]string(nil), components...),
		"architecture_patterns": []string{},
		"tech_stack": map[string]interface{}{
			"languages":  languages,
			"frameworks": frameworks,
		},
		"architecture_summary": b.String(),
		"model_used":           FallbackModel,
	}
}

const visualizationGuidance = `Based on common software architecture patterns, here are places to add visualizations:

## Common Locations

1. **Frontend components**: src/components/charts/ or src/components/visualizations/ for reusable chart components
2. **Dashboard or analytics pages**: src/pages/dashboard/ or src/views/analytics/
3. **Shared UI library**: src/shared/components/ or lib/components/

## Libraries
- React: Recharts, Chart.js, D3.js or Victory
- Vue: vue-chartjs, D3.js
- Angular: Chart.js, D3.js, ng2-charts

## Files to Create or Modify
1. Chart component files
2. Dependency manifest (package.json)
3. Routing, if new pages are added
4. Data fetching services
5. The main layout, to link the new sections

For specific recommendations, analyze the actual codebase.`

const unavailableGuidance = `The language models are currently unreachable, so no detailed answer is available. Try again later, or:

1. Check network connectivity
2. Verify that API keys are configured
3. Rephrase the question

For architectural questions, follow the patterns already established in the codebase and the documentation of its frameworks.`

// fallbackResponse is the canned answer used when every provider fails.
func fallbackResponse(prompt string) string {
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "visualization") || strings.Contains(lower, "add") {
		return visualizationGuidance
	}
	return unavailableGuidance
}
