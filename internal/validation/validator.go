package validation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// DefaultConfidenceThreshold is the confidence below which results are
// considered weak and corrections are applied.
const DefaultConfidenceThreshold = 0.75

// MetadataKey is the reserved results key for run metadata; it is never validated.
const MetadataKey = "execution_metadata"

// trendWindow is the number of recent validations the trend is computed over.
const trendWindow = 10

// Record is one entry of the validation history.
type Record struct {
	Timestamp            time.Time `json:"timestamp"`
	GoalID               string    `json:"goal_id"`
	OverallConfidence    float64   `json:"overall_confidence"`
	IssuesCount          int       `json:"issues_count"`
	RecommendationsCount int       `json:"recommendations_count"`
}

// Validator runs validation checks and keeps a history of their outcomes.
// It is safe for concurrent use.
type Validator struct {
	threshold float64

	mu       sync.Mutex
	history  []Record
	debugLog func(format string, args ...interface{})
}

// New creates a Validator. A threshold outside (0,1] falls back to
// DefaultConfidenceThreshold.
func New(threshold float64) *Validator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &Validator{
		threshold: threshold,
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (v *Validator) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		v.debugLog = fn
	}
}

// Threshold returns the confidence threshold.
func (v *Validator) Threshold() float64 {
	return v.threshold
}

// ValidateAndCorrect runs the completeness, per-task quality, consistency
// and organizational-context checks over results and aggregates them.
// The result is valid only when no check reported an issue.
func (v *Validator) ValidateAndCorrect(results map[string]models.Result, goal *models.Goal, ectx *models.ExecutionContext) *models.ValidationResult {
	var (
		issues          []string
		recommendations []string
		scores          []float64
	)
	collect := func(r models.ValidationResult) {
		issues = append(issues, r.Issues...)
		recommendations = append(recommendations, r.Recommendations...)
		scores = append(scores, r.Confidence)
	}

	completeness := checkCompleteness(results, goal)
	collect(completeness)

	taskQuality := true
	ids := resultIDs(results)
	for _, id := range ids {
		r := v.checkTask(id, results[id])
		if !r.Valid {
			taskQuality = false
		}
		collect(r)
	}

	consistency := checkConsistency(results)
	collect(consistency)

	var org map[string]interface{}
	if ectx != nil {
		org = ectx.OrgContext
	}
	orgCheck := checkOrgContext(results, org)
	collect(orgCheck)

	overall := mean(scores)
	out := &models.ValidationResult{
		Valid:           len(issues) == 0,
		Confidence:      overall,
		Issues:          issues,
		Recommendations: recommendations,
		Metadata: map[string]interface{}{
			"validation_time": time.Now(),
			"tasks_validated": len(ids),
			"validation_categories": map[string]bool{
				"completeness":           completeness.Valid,
				"task_quality":           taskQuality,
				"consistency":            consistency.Valid,
				"organizational_context": orgCheck.Valid,
			},
		},
	}

	goalID := ""
	if goal != nil {
		goalID = goal.ID
	}
	v.mu.Lock()
	v.history = append(v.history, Record{
		Timestamp:            time.Now(),
		GoalID:               goalID,
		OverallConfidence:    overall,
		IssuesCount:          len(issues),
		RecommendationsCount: len(recommendations),
	})
	v.mu.Unlock()

	v.debugLog("[validator] goal %s: confidence=%.2f issues=%d", goalID, overall, len(issues))
	return out
}

// FinalValidation is the end-of-run check: the goal must be fully complete,
// the mean result confidence must reach the threshold, and the results must
// carry at least one structure, pattern and technology data point.
func (v *Validator) FinalValidation(results map[string]models.Result, goal *models.Goal) *models.ValidationResult {
	var issues, recommendations []string

	if goal != nil && goal.CompletionPercentage < 100 {
		issues = append(issues, fmt.Sprintf("Goal only %.1f%% complete", goal.CompletionPercentage))
	}

	var scores []float64
	found := make(map[string]bool)
	for _, id := range resultIDs(results) {
		res := results[id]
		if c, ok := res.Confidence(); ok {
			scores = append(scores, c)
		} else if _, failed := res.Error(); !failed {
			scores = append(scores, 0.6)
		}

		if hasAny(res, "components", "analysis") {
			found["structure"] = true
		}
		if hasAny(res, "patterns") {
			found["patterns"] = true
		}
		if hasAny(res, "tech_stack", "tech_mapping") {
			found["technologies"] = true
		}
	}

	overall := 0.5
	if len(scores) > 0 {
		overall = mean(scores)
	}

	var missing []string
	for _, dp := range []string{"structure", "patterns", "technologies"} {
		if !found[dp] {
			missing = append(missing, dp)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("Missing critical data points: %v", missing))
		recommendations = append(recommendations, "Improve analysis depth")
	}

	return &models.ValidationResult{
		Valid:           len(issues) == 0 && overall >= v.threshold,
		Confidence:      overall,
		Issues:          issues,
		Recommendations: recommendations,
	}
}

// History returns a copy of the validation history.
func (v *Validator) History() []Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Record(nil), v.history...)
}

// Metrics summarizes the validation history.
func (v *Validator) Metrics() map[string]interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := len(v.history)
	if total == 0 {
		return map[string]interface{}{"total_validations": 0}
	}

	var conf, issues float64
	for _, rec := range v.history {
		conf += rec.OverallConfidence
		issues += float64(rec.IssuesCount)
	}

	start := 0
	if total > trendWindow {
		start = total - trendWindow
	}
	recent := make([]float64, 0, total-start)
	for _, rec := range v.history[start:] {
		recent = append(recent, rec.OverallConfidence)
	}

	return map[string]interface{}{
		"total_validations":         total,
		"avg_confidence":            conf / float64(total),
		"avg_issues_per_validation": issues / float64(total),
		"last_validation":           v.history[total-1].Timestamp,
		"confidence_trend":          recent,
		"trend":                     trend(recent),
	}
}

// trend compares the mean of the older half of confidences with the newer half.
func trend(confidences []float64) string {
	if len(confidences) < 3 {
		return "insufficient_data"
	}
	half := len(confidences) / 2
	delta := mean(confidences[len(confidences)-half:]) - mean(confidences[:half])
	switch {
	case delta > 0.05:
		return "improving"
	case delta < -0.05:
		return "declining"
	default:
		return "stable"
	}
}

// resultIDs returns the validated result keys in lexical order.
func resultIDs(results map[string]models.Result) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		if id != MetadataKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func hasAny(res models.Result, keys ...string) bool {
	for _, k := range keys {
		if _, ok := res[k]; ok {
			return true
		}
	}
	return false
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
