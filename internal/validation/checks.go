package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	// completenessFloor is the share of goal tasks below which a run is flagged incomplete.
	completenessFloor = 0.8
	// typeCheckConfidence is reported by a type-specific check that found nothing.
	typeCheckConfidence = 0.7
	// defaultTaskConfidence is assumed for results that report no confidence.
	defaultTaskConfidence = 0.5

	maxLanguages  = 15
	maxFrameworks = 20
	// coverageFloor is the share of the organization a run must analyze.
	coverageFloor = 0.5
)

// conflict is a set of technologies rarely all primary at once.
type conflict struct {
	members     []string
	description string
}

var conflicts = []conflict{
	{[]string{"java", "python", "javascript"}, "Multiple primary languages"},
	{[]string{"react", "vue", "angular"}, "Multiple frontend frameworks"},
	{[]string{"spring", "django", "express"}, "Multiple backend frameworks"},
}

func checkCompleteness(results map[string]models.Result, goal *models.Goal) models.ValidationResult {
	var issues, recs []string
	var tasks []string
	if goal != nil {
		tasks = goal.AssociatedTasks
	}

	present := 0
	var missing []string
	for _, id := range tasks {
		if _, ok := results[id]; ok && id != MetadataKey {
			present++
		} else {
			missing = append(missing, id)
		}
	}

	ratio := 0.0
	if len(tasks) > 0 {
		ratio = float64(present) / float64(len(tasks))
	}
	if ratio < completenessFloor {
		issues = append(issues, fmt.Sprintf("Only %d/%d tasks completed (%.1f%%)", present, len(tasks), ratio*100))
		recs = append(recs, "Continue task execution or replan failed tasks")
	}
	for _, id := range missing {
		issues = append(issues, fmt.Sprintf("Critical task %s not completed", id))
		recs = append(recs, fmt.Sprintf("Retry or replan task %s", id))
	}

	return models.ValidationResult{
		Valid:           len(issues) == 0,
		Confidence:      ratio,
		Issues:          issues,
		Recommendations: recs,
	}
}

// checkTask scores a single result envelope.
func (v *Validator) checkTask(id string, res models.Result) models.ValidationResult {
	if len(res) == 0 {
		return models.ValidationResult{
			Confidence:      0,
			Issues:          []string{fmt.Sprintf("Task %s returned empty result", id)},
			Recommendations: []string{fmt.Sprintf("Retry task %s", id)},
		}
	}
	if msg, failed := res.Error(); failed {
		return models.ValidationResult{
			Confidence:      0.1,
			Issues:          []string{fmt.Sprintf("Task %s returned error: %s", id, msg)},
			Recommendations: []string{fmt.Sprintf("Debug and retry task %s", id)},
		}
	}

	var issues, recs []string
	confidence := defaultTaskConfidence
	if c, ok := res.Confidence(); ok {
		confidence = c
		if c < v.threshold {
			issues = append(issues, fmt.Sprintf("Task %s has low confidence: %.2f", id, c))
			recs = append(recs, fmt.Sprintf("Improve or retry task %s", id))
		}
	}

	typed := checkTaskType(InferTaskType(id, res), res)
	if typed.Valid {
		if typed.Confidence > confidence {
			confidence = typed.Confidence
		}
	} else {
		issues = append(issues, typed.Issues...)
	}

	return models.ValidationResult{
		Valid:           len(issues) == 0,
		Confidence:      confidence,
		Issues:          issues,
		Recommendations: recs,
	}
}

// checkTaskType checks that a result carries the data its task type promises.
func checkTaskType(tt models.TaskType, res models.Result) models.ValidationResult {
	var issues []string

	switch tt {
	case models.TaskTypeAnalyzeStructure:
		if !hasAny(res, "components", "analysis") {
			issues = append(issues, "Structure analysis missing components or analysis data")
		}
		if !hasAny(res, "tech_stack") {
			issues = append(issues, "Structure analysis missing technology stack information")
		}

	case models.TaskTypeExtractPatterns:
		if !hasAny(res, "patterns") {
			issues = append(issues, "Pattern extraction missing patterns data")
		} else if n, grouped := countPatterns(res["patterns"]); grouped && n == 0 {
			issues = append(issues, "No patterns detected - may indicate analysis issue")
		}

	case models.TaskTypeGenerateDiagram:
		if !hasAny(res, "mermaid") {
			issues = append(issues, "Diagram generation missing mermaid output")
		} else if s, _ := res["mermaid"].(string); len(s) < 10 {
			issues = append(issues, "Generated diagram appears to be empty or invalid")
		}

	case models.TaskTypeCrossRepoAnalysis:
		if !hasAny(res, "patterns", "shared_technologies") {
			issues = append(issues, "Cross-repo analysis missing pattern or technology data")
		}
		if n, ok := models.ToFloat(res["analyzed_repos"]); ok && n == 0 {
			issues = append(issues, "Cross-repo analysis found no valid repositories")
		}

	case models.TaskTypeTechStackMapping:
		if !hasAny(res, "tech_mapping") {
			issues = append(issues, "Tech stack mapping missing mapping data")
		} else if mapping := res.Map("tech_mapping"); mapping != nil {
			total := 0
			for _, v := range mapping {
				total += len(names(v, false))
			}
			if total == 0 {
				issues = append(issues, "No technologies detected in mapping")
			}
		}

	case models.TaskTypeTeamRecommendations:
		if !hasAny(res, "recommendations") {
			issues = append(issues, "Team recommendations missing recommendations data")
		} else if lists := models.ToStringLists(res["recommendations"]); lists != nil && countLists(lists) == 0 {
			issues = append(issues, "No recommendations generated")
		}
	}

	confidence := typeCheckConfidence
	if len(issues) > 0 {
		confidence *= 0.5
	}
	return models.ValidationResult{
		Valid:      len(issues) == 0,
		Confidence: confidence,
		Issues:     issues,
	}
}

// countPatterns counts entries of a category mapping: lists count their
// items, anything else counts once. grouped is false for other shapes.
func countPatterns(v interface{}) (n int, grouped bool) {
	switch groups := v.(type) {
	case map[string][]string:
		return countLists(groups), true
	case map[string]int:
		return len(groups), true
	case map[string]interface{}:
		for _, item := range groups {
			switch items := item.(type) {
			case []string:
				n += len(items)
			case []interface{}:
				n += len(items)
			default:
				n++
			}
		}
		return n, true
	default:
		return 0, false
	}
}

func countLists(lists map[string][]string) int {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	return total
}

// InferTaskType classifies a result. The executor's task_type tag wins;
// untagged results are classified from the task ID, then from their keys,
// defaulting to structure analysis.
func InferTaskType(id string, res models.Result) models.TaskType {
	if tt := res.TaskType(); tt.Valid() {
		return tt
	}

	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "analyze") && strings.Contains(lower, "structure"):
		return models.TaskTypeAnalyzeStructure
	case strings.Contains(lower, "pattern"):
		return models.TaskTypeExtractPatterns
	case strings.Contains(lower, "diagram"):
		return models.TaskTypeGenerateDiagram
	case strings.Contains(lower, "cross_repo"):
		return models.TaskTypeCrossRepoAnalysis
	case strings.Contains(lower, "tech"):
		return models.TaskTypeTechStackMapping
	case strings.Contains(lower, "team"):
		return models.TaskTypeTeamRecommendations
	case strings.Contains(lower, "validate"):
		return models.TaskTypeValidateAnalysis
	case strings.Contains(lower, "feature"):
		return models.TaskTypeSuggestFeatures
	}

	switch {
	case hasAny(res, "mermaid"):
		return models.TaskTypeGenerateDiagram
	case hasAny(res, "patterns") && hasAny(res, "shared_technologies"):
		return models.TaskTypeCrossRepoAnalysis
	case hasAny(res, "tech_mapping"):
		return models.TaskTypeTechStackMapping
	case hasAny(res, "recommendations"):
		return models.TaskTypeTeamRecommendations
	}
	return models.TaskTypeAnalyzeStructure
}

// checkConsistency looks for noisy or contradictory technology detection
// across all results.
func checkConsistency(results map[string]models.Result) models.ValidationResult {
	languages := make(map[string]bool)
	frameworks := make(map[string]bool)
	add := func(set map[string]bool, items []string) {
		for _, s := range items {
			set[strings.ToLower(s)] = true
		}
	}

	for _, id := range resultIDs(results) {
		res := results[id]
		add(languages, names(res["languages"], true))
		add(frameworks, names(res["frameworks"], true))
		for _, key := range []string{"tech_stack", "tech_mapping"} {
			if stack := res.Map(key); stack != nil {
				add(languages, names(stack["languages"], false))
				add(frameworks, names(stack["frameworks"], false))
			}
		}
	}

	var issues []string
	confidence := 0.8
	if len(languages) > maxLanguages {
		issues = append(issues, fmt.Sprintf("Too many different languages detected (%d) - possible inconsistency", len(languages)))
		confidence -= 0.2
	}
	if len(frameworks) > maxFrameworks {
		issues = append(issues, fmt.Sprintf("Too many different frameworks detected (%d) - possible inconsistency", len(frameworks)))
		confidence -= 0.1
	}

	for _, c := range conflicts {
		var found []string
		for _, tech := range c.members {
			if languages[tech] || frameworks[tech] {
				found = append(found, tech)
			}
		}
		if len(found) > 2 {
			issues = append(issues, fmt.Sprintf("Potential conflict detected: %s - %v", c.description, found))
			confidence -= 0.1
		}
	}

	if confidence < 0.1 {
		confidence = 0.1
	}
	var recs []string
	if len(issues) > 0 {
		recs = []string{"Review technology detection accuracy"}
	}
	return models.ValidationResult{
		Valid:           len(issues) == 0,
		Confidence:      confidence,
		Issues:          issues,
		Recommendations: recs,
	}
}

// names extracts technology names from a list, or from the keys of a
// frequency mapping. listsOnly rejects mappings.
func names(v interface{}, listsOnly bool) []string {
	if items := models.ToStrings(v); items != nil {
		return items
	}
	if listsOnly {
		return nil
	}
	var out []string
	switch m := v.(type) {
	case map[string]int:
		for k := range m {
			out = append(out, k)
		}
	case map[string]interface{}:
		for k := range m {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// checkOrgContext compares results with what is known about the
// organization: repository coverage and previously seen architecture patterns.
func checkOrgContext(results map[string]models.Result, org map[string]interface{}) models.ValidationResult {
	var issues []string
	confidence := 0.8

	if total, ok := models.ToFloat(org["total_repos"]); ok {
		analyzed := 0.0
		for _, res := range results {
			if n, ok := models.ToFloat(res["analyzed_repos"]); ok && n > analyzed {
				analyzed = n
			}
		}
		if analyzed < total*coverageFloor {
			issues = append(issues, fmt.Sprintf("Only analyzed %d/%d repositories", int(analyzed), int(total)))
			confidence -= 0.3
		}
	}

	if known, ok := org["patterns"]; ok {
		expected := expectedPatterns(known)
		if len(expected) > 0 {
			found := foundPatterns(results)
			matched := false
			for p := range expected {
				if found[p] {
					matched = true
					break
				}
			}
			if !matched {
				issues = append(issues, "Expected organizational patterns not detected")
				confidence -= 0.2
			}
		}
	}

	var recs []string
	if len(issues) > 0 {
		recs = []string{"Verify organizational context accuracy"}
	}
	return models.ValidationResult{
		Valid:           len(issues) == 0,
		Confidence:      confidence,
		Issues:          issues,
		Recommendations: recs,
	}
}

// expectedPatterns returns the lower-cased architecture patterns the
// organization is known for.
func expectedPatterns(known interface{}) map[string]bool {
	out := make(map[string]bool)
	var counts map[string]int
	switch k := known.(type) {
	case *models.OrganizationPatterns:
		if k != nil {
			counts = k.ArchitectureTypes
		}
	case map[string]interface{}:
		counts = models.ToCounts(k["architectural"])
		if counts == nil {
			counts = models.ToCounts(k["architecture_types"])
		}
	}
	for p := range counts {
		out[strings.ToLower(p)] = true
	}
	return out
}

// foundPatterns collects the lower-cased pattern names present in results,
// whether reported as a list, a category mapping of lists, or frequency counts.
func foundPatterns(results map[string]models.Result) map[string]bool {
	out := make(map[string]bool)
	for _, res := range results {
		v, ok := res["patterns"]
		if !ok {
			continue
		}
		for _, p := range models.ToStrings(v) {
			out[strings.ToLower(p)] = true
		}
		for _, list := range models.ToStringLists(v) {
			for _, p := range list {
				out[strings.ToLower(p)] = true
			}
		}
		for p := range models.ToCounts(v) {
			out[strings.ToLower(p)] = true
		}
	}
	return out
}
