package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

func newContext(org map[string]interface{}) *models.ExecutionContext {
	ectx := models.NewExecutionContext("run", nil, models.ResourceConstraints{})
	for k, v := range org {
		ectx.OrgContext[k] = v
	}
	return ectx
}

func TestValidateAndCorrect_ErrorResultPullsConfidenceDown(t *testing.T) {
	v := New(DefaultConfidenceThreshold)
	goal := &models.Goal{ID: "g", AssociatedTasks: []string{"t1", "t2"}}
	results := map[string]models.Result{
		"t1": {"confidence": 0.9},
		"t2": {"error": "boom"},
	}

	res := v.ValidateAndCorrect(results, goal, newContext(nil))

	// completeness 1.0, t1 0.9, t2 0.1, consistency 0.8, org 0.8
	assert.InDelta(t, 0.72, res.Confidence, 1e-9)
	assert.Greater(t, res.Confidence, 0.1)
	assert.Less(t, res.Confidence, 0.9)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Issues, "Task t2 returned error: boom")
	assert.Contains(t, res.Recommendations, "Debug and retry task t2")

	categories := res.Metadata["validation_categories"].(map[string]bool)
	assert.True(t, categories["completeness"])
	assert.False(t, categories["task_quality"])
	assert.Equal(t, 2, res.Metadata["tasks_validated"])
}

func TestValidateAndCorrect_HealthyRepositoryRun(t *testing.T) {
	v := New(DefaultConfidenceThreshold)
	goal := &models.Goal{ID: "g", AssociatedTasks: []string{"s", "p", "d"}}
	results := map[string]models.Result{
		"s": {
			"task_type":  "analyze_structure",
			"components": map[string]interface{}{"api": "HTTP handlers"},
			"tech_stack": map[string]interface{}{"languages": []interface{}{"go"}},
			"confidence": 0.85,
		},
		"p": {
			"task_type":  "extract_patterns",
			"patterns":   map[string][]string{"design": {"Factory"}},
			"confidence": 0.75,
		},
		"d": {
			"task_type":  "generate_diagram",
			"mermaid":    "graph TD\n  A-->B",
			"confidence": 0.8,
		},
		MetadataKey: {"iterations": 2},
	}

	res := v.ValidateAndCorrect(results, goal, newContext(nil))

	assert.True(t, res.Valid, "issues: %v", res.Issues)
	assert.Empty(t, res.Recommendations)
	assert.InDelta(t, 5.0/6.0, res.Confidence, 1e-9)
	assert.Equal(t, 3, res.Metadata["tasks_validated"])
}

func TestCheckCompleteness(t *testing.T) {
	goal := &models.Goal{AssociatedTasks: []string{"a", "b", "c", "d", "e"}}

	t.Run("mostly missing", func(t *testing.T) {
		res := checkCompleteness(map[string]models.Result{"a": {"confidence": 1.0}}, goal)

		assert.False(t, res.Valid)
		assert.InDelta(t, 0.2, res.Confidence, 1e-9)
		assert.Equal(t, "Only 1/5 tasks completed (20.0%)", res.Issues[0])
		assert.Len(t, res.Issues, 5)
		assert.Contains(t, res.Recommendations, "Retry or replan task e")
	})

	t.Run("one missing above floor", func(t *testing.T) {
		results := map[string]models.Result{"a": {}, "b": {}, "c": {}, "d": {}}
		res := checkCompleteness(results, goal)

		assert.InDelta(t, 0.8, res.Confidence, 1e-9)
		assert.Equal(t, []string{"Critical task e not completed"}, res.Issues)
	})

	t.Run("no tasks", func(t *testing.T) {
		res := checkCompleteness(nil, &models.Goal{})
		assert.Zero(t, res.Confidence)
		assert.False(t, res.Valid)
	})
}

func TestCheckTask(t *testing.T) {
	v := New(DefaultConfidenceThreshold)

	tests := []struct {
		name       string
		id         string
		res        models.Result
		valid      bool
		confidence float64
		issue      string
	}{
		{"empty", "t", models.Result{}, false, 0, "Task t returned empty result"},
		{"error", "t", models.Result{"error": "timeout"}, false, 0.1, "Task t returned error: timeout"},
		{"low confidence", "validate_x", models.Result{"confidence": 0.4}, false, 0.7, "Task validate_x has low confidence: 0.40"},
		{"validation without confidence", "validate_x", models.Result{"validated_repos": 3}, true, 0.7, ""},
		{"high confidence kept", "validate_x", models.Result{"confidence": 0.95}, true, 0.95, ""},
		{"type check fails", "analyze_structure_a", models.Result{"confidence": 0.9},
			false, 0.9, "Structure analysis missing components or analysis data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.checkTask(tt.id, tt.res)

			assert.Equal(t, tt.valid, res.Valid)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			if tt.issue != "" {
				assert.Contains(t, res.Issues, tt.issue)
			} else {
				assert.Empty(t, res.Issues)
			}
		})
	}
}

func TestCheckTaskType(t *testing.T) {
	tests := []struct {
		name  string
		tt    models.TaskType
		res   models.Result
		issue string
	}{
		{"structure ok", models.TaskTypeAnalyzeStructure,
			models.Result{"analysis": "layered", "tech_stack": map[string]interface{}{}}, ""},
		{"structure without stack", models.TaskTypeAnalyzeStructure,
			models.Result{"components": map[string]interface{}{}}, "Structure analysis missing technology stack information"},
		{"patterns missing", models.TaskTypeExtractPatterns,
			models.Result{}, "Pattern extraction missing patterns data"},
		{"patterns empty", models.TaskTypeExtractPatterns,
			models.Result{"patterns": map[string][]string{"design": nil}}, "No patterns detected - may indicate analysis issue"},
		{"pattern list", models.TaskTypeExtractPatterns,
			models.Result{"patterns": []string{}}, ""},
		{"diagram missing", models.TaskTypeGenerateDiagram,
			models.Result{}, "Diagram generation missing mermaid output"},
		{"diagram too short", models.TaskTypeGenerateDiagram,
			models.Result{"mermaid": "graph"}, "Generated diagram appears to be empty or invalid"},
		{"cross repo missing data", models.TaskTypeCrossRepoAnalysis,
			models.Result{"analyzed_repos": 2}, "Cross-repo analysis missing pattern or technology data"},
		{"cross repo no repos", models.TaskTypeCrossRepoAnalysis,
			models.Result{"patterns": map[string]int{}, "analyzed_repos": 0}, "Cross-repo analysis found no valid repositories"},
		{"tech mapping missing", models.TaskTypeTechStackMapping,
			models.Result{}, "Tech stack mapping missing mapping data"},
		{"tech mapping empty", models.TaskTypeTechStackMapping,
			models.Result{"tech_mapping": map[string]interface{}{"languages": map[string]int{}, "total_repos": 3}},
			"No technologies detected in mapping"},
		{"tech mapping ok", models.TaskTypeTechStackMapping,
			models.Result{"tech_mapping": map[string]interface{}{"languages": map[string]int{"go": 2}}}, ""},
		{"team missing", models.TaskTypeTeamRecommendations,
			models.Result{}, "Team recommendations missing recommendations data"},
		{"team empty", models.TaskTypeTeamRecommendations,
			models.Result{"recommendations": map[string][]string{"architecture": {}}}, "No recommendations generated"},
		{"features unchecked", models.TaskTypeSuggestFeatures, models.Result{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checkTaskType(tt.tt, tt.res)
			if tt.issue == "" {
				assert.True(t, res.Valid, "issues: %v", res.Issues)
				assert.InDelta(t, 0.7, res.Confidence, 1e-9)
				return
			}
			assert.False(t, res.Valid)
			assert.Contains(t, res.Issues, tt.issue)
			assert.InDelta(t, 0.35, res.Confidence, 1e-9)
		})
	}
}

func TestInferTaskType(t *testing.T) {
	tests := []struct {
		id   string
		res  models.Result
		want models.TaskType
	}{
		{"anything", models.Result{"task_type": "generate_diagram"}, models.TaskTypeGenerateDiagram},
		{"analyze_structure_api", models.Result{}, models.TaskTypeAnalyzeStructure},
		{"reextract_patterns_1", models.Result{}, models.TaskTypeExtractPatterns},
		{"generate_diagram_api", models.Result{}, models.TaskTypeGenerateDiagram},
		{"cross_repo", models.Result{}, models.TaskTypeCrossRepoAnalysis},
		{"tech_mapping", models.Result{}, models.TaskTypeTechStackMapping},
		{"team_recommendations", models.Result{}, models.TaskTypeTeamRecommendations},
		{"validate_analysis", models.Result{}, models.TaskTypeValidateAnalysis},
		{"suggest_features_api", models.Result{}, models.TaskTypeSuggestFeatures},
		{"t1", models.Result{"mermaid": "graph TD"}, models.TaskTypeGenerateDiagram},
		{"t2", models.Result{"patterns": 1, "shared_technologies": 2}, models.TaskTypeCrossRepoAnalysis},
		{"t3", models.Result{"tech_mapping": 1}, models.TaskTypeTechStackMapping},
		{"t4", models.Result{"recommendations": 1}, models.TaskTypeTeamRecommendations},
		{"t5", models.Result{"task_type": "bogus"}, models.TaskTypeAnalyzeStructure},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTaskType(tt.id, tt.res))
		})
	}
}

func TestCheckConsistency(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		res := checkConsistency(map[string]models.Result{
			"a": {"tech_stack": map[string]interface{}{"languages": []string{"go"}, "frameworks": []string{"gin"}}},
			"b": {"tech_mapping": map[string]interface{}{"languages": map[string]int{"go": 3}}},
		})
		assert.True(t, res.Valid)
		assert.InDelta(t, 0.8, res.Confidence, 1e-9)
		assert.Empty(t, res.Recommendations)
	})

	t.Run("conflicting primary languages", func(t *testing.T) {
		res := checkConsistency(map[string]models.Result{
			"a": {"languages": []string{"Java", "Python"}},
			"b": {"tech_mapping": map[string]interface{}{"languages": map[string]int{"javascript": 1}}},
		})
		assert.False(t, res.Valid)
		assert.InDelta(t, 0.7, res.Confidence, 1e-9)
		assert.Equal(t, []string{"Potential conflict detected: Multiple primary languages - [java python javascript]"}, res.Issues)
		assert.Equal(t, []string{"Review technology detection accuracy"}, res.Recommendations)
	})

	t.Run("too many languages", func(t *testing.T) {
		var langs []string
		for _, l := range "abcdefghijklmnop" {
			langs = append(langs, string(l))
		}
		res := checkConsistency(map[string]models.Result{"a": {"languages": langs}})
		assert.InDelta(t, 0.6, res.Confidence, 1e-9)
		assert.Contains(t, res.Issues, "Too many different languages detected (16) - possible inconsistency")
	})
}

func TestCheckOrgContext(t *testing.T) {
	known := models.NewOrganizationPatterns()
	known.ArchitectureTypes["Layered"] = 4

	tests := []struct {
		name       string
		results    map[string]models.Result
		org        map[string]interface{}
		confidence float64
		issues     []string
	}{
		{"no context", nil, nil, 0.8, nil},
		{"low coverage", map[string]models.Result{"x": {"analyzed_repos": 3}},
			map[string]interface{}{"total_repos": 10}, 0.5, []string{"Only analyzed 3/10 repositories"}},
		{"enough coverage", map[string]models.Result{"x": {"analyzed_repos": 5}},
			map[string]interface{}{"total_repos": 10}, 0.8, nil},
		{"known pattern found", map[string]models.Result{"x": {"patterns": []string{"layered"}}},
			map[string]interface{}{"patterns": known}, 0.8, nil},
		{"known pattern counted", map[string]models.Result{"x": {"patterns": map[string]int{"Layered": 2}}},
			map[string]interface{}{"patterns": known}, 0.8, nil},
		{"known pattern missing", map[string]models.Result{"x": {"patterns": map[string][]string{"design": {"Factory"}}}},
			map[string]interface{}{"patterns": known}, 0.6, []string{"Expected organizational patterns not detected"}},
		{"nothing expected", map[string]models.Result{},
			map[string]interface{}{"patterns": models.NewOrganizationPatterns()}, 0.8, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checkOrgContext(tt.results, tt.org)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			assert.Equal(t, tt.issues, res.Issues)
			assert.Equal(t, len(tt.issues) == 0, res.Valid)
		})
	}
}

func TestFinalValidation(t *testing.T) {
	v := New(DefaultConfidenceThreshold)

	t.Run("complete run", func(t *testing.T) {
		goal := &models.Goal{CompletionPercentage: 100}
		res := v.FinalValidation(map[string]models.Result{
			"s": {"components": 1, "tech_stack": 1, "confidence": 0.9},
			"p": {"patterns": 1, "confidence": 0.8},
			"v": {"validated_repos": 1},
		}, goal)

		// results without a confidence count as 0.6
		assert.True(t, res.Valid)
		assert.InDelta(t, 2.3/3, res.Confidence, 1e-9)
		assert.Empty(t, res.Issues)
	})

	t.Run("incomplete run", func(t *testing.T) {
		goal := &models.Goal{CompletionPercentage: 42.5}
		res := v.FinalValidation(map[string]models.Result{
			"s": {"analysis": "x", "confidence": 0.9},
			"f": {"error": "boom"},
		}, goal)

		assert.False(t, res.Valid)
		assert.InDelta(t, 0.9, res.Confidence, 1e-9)
		assert.Equal(t, []string{
			"Goal only 42.5% complete",
			"Missing critical data points: [patterns technologies]",
		}, res.Issues)
		assert.Equal(t, []string{"Improve analysis depth"}, res.Recommendations)
	})

	t.Run("no results", func(t *testing.T) {
		res := v.FinalValidation(nil, &models.Goal{CompletionPercentage: 100})
		assert.InDelta(t, 0.5, res.Confidence, 1e-9)
		assert.False(t, res.Valid)
	})

	t.Run("below threshold", func(t *testing.T) {
		res := v.FinalValidation(map[string]models.Result{
			"s": {"components": 1, "patterns": 1, "tech_mapping": 1, "confidence": 0.5},
		}, &models.Goal{CompletionPercentage: 100})
		assert.Empty(t, res.Issues)
		assert.False(t, res.Valid)
	})
}

func TestMetrics(t *testing.T) {
	v := New(0)
	assert.Equal(t, DefaultConfidenceThreshold, v.Threshold())
	assert.Equal(t, map[string]interface{}{"total_validations": 0}, v.Metrics())

	goal := &models.Goal{ID: "g", AssociatedTasks: []string{"t1"}}
	v.ValidateAndCorrect(map[string]models.Result{"t1": {"error": "x"}}, goal, nil)
	v.ValidateAndCorrect(map[string]models.Result{"t1": {"error": "x"}}, goal, nil)

	m := v.Metrics()
	assert.Equal(t, 2, m["total_validations"])
	assert.Equal(t, "insufficient_data", m["trend"])
	assert.InDelta(t, 1.0, m["avg_issues_per_validation"], 1e-9)
	require.Len(t, m["confidence_trend"], 2)

	history := v.History()
	require.Len(t, history, 2)
	assert.Equal(t, "g", history[0].GoalID)
	assert.Equal(t, 1, history[0].RecommendationsCount)
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want string
	}{
		{"too few", []float64{0.5, 0.9}, "insufficient_data"},
		{"improving", []float64{0.4, 0.5, 0.6, 0.8}, "improving"},
		{"declining", []float64{0.9, 0.8, 0.5, 0.4}, "declining"},
		{"stable", []float64{0.7, 0.72, 0.71, 0.7}, "stable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trend(tt.in))
		})
	}
}
