package models

import "time"

// Well-known keys of a result envelope.
const (
	ResultKeyError      = "error"
	ResultKeyConfidence = "confidence"
	ResultKeyTaskType   = "task_type"
)

// Result is the envelope every task handler returns. Handlers never fail
// outright: a degraded run returns an envelope carrying an "error" key and
// a low confidence instead.
type Result map[string]interface{}

// ErrorResult builds a degraded envelope for err.
func ErrorResult(err error, confidence float64) Result {
	return Result{
		ResultKeyError:      err.Error(),
		ResultKeyConfidence: confidence,
	}
}

// Confidence returns the envelope's confidence if it holds a number.
func (r Result) Confidence() (float64, bool) {
	return ToFloat(r[ResultKeyConfidence])
}

// ConfidenceOr returns the confidence or def when absent.
func (r Result) ConfidenceOr(def float64) float64 {
	if c, ok := r.Confidence(); ok {
		return c
	}
	return def
}

// Error returns the error message, if the envelope carries one.
func (r Result) Error() (string, bool) {
	v, ok := r[ResultKeyError]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "unknown error", true
}

// TaskType returns the originating task type stamped by the executor.
func (r Result) TaskType() TaskType {
	switch v := r[ResultKeyTaskType].(type) {
	case TaskType:
		return v
	case string:
		return TaskType(v)
	default:
		return ""
	}
}

// Map returns a nested mapping value, or nil.
func (r Result) Map(key string) map[string]interface{} {
	switch v := r[key].(type) {
	case map[string]interface{}:
		return v
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case Result:
		return v
	default:
		return nil
	}
}

// Strings returns a nested string list, accepting []string or []interface{}.
func (r Result) Strings(key string) []string {
	return ToStrings(r[key])
}

// ToFloat converts the numeric kinds a result may carry to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToStrings converts []string or []interface{} of strings to []string.
func ToStrings(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// ToCounts converts a frequency mapping (map[string]int or a decoded JSON
// object of numbers) to map[string]int. Other shapes yield nil.
func ToCounts(v interface{}) map[string]int {
	switch m := v.(type) {
	case map[string]int:
		return m
	case map[string]interface{}:
		out := make(map[string]int, len(m))
		for k, item := range m {
			if f, ok := ToFloat(item); ok {
				out[k] = int(f)
			}
		}
		return out
	default:
		return nil
	}
}

// ToStringLists converts a category -> list mapping to map[string][]string.
// Entries whose value is not a list are skipped.
func ToStringLists(v interface{}) map[string][]string {
	switch m := v.(type) {
	case map[string][]string:
		return m
	case map[string]interface{}:
		out := make(map[string][]string, len(m))
		for k, item := range m {
			switch item.(type) {
			case []string, []interface{}:
				out[k] = ToStrings(item)
			}
		}
		return out
	default:
		return nil
	}
}

// ValidationResult is the output of one validation check or pass.
type ValidationResult struct {
	// Valid is true when the check found nothing disqualifying.
	Valid bool `json:"is_valid"`
	// Confidence is the check's score in [0,1].
	Confidence float64 `json:"confidence"`
	// Issues lists problems found.
	Issues []string `json:"issues"`
	// Recommendations lists corrective actions.
	Recommendations []string `json:"recommendations"`
	// Metadata carries check-specific details.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AnalysisResult is what the orchestrator hands back to its callers.
type AnalysisResult struct {
	// Success is false only for run-level failures.
	Success bool `json:"success"`
	// AnalysisType names the kind of run (single_repository or organizational).
	AnalysisType string `json:"analysis_type"`
	// Confidence is the final validated confidence.
	Confidence float64 `json:"confidence"`
	// Data is the synthesized report or partial results.
	Data map[string]interface{} `json:"data"`
	// Metadata carries run statistics.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`
	// ExecutionTime is the wall-clock duration of the run.
	ExecutionTime time.Duration `json:"execution_time"`
	// Errors lists run-level errors.
	Errors []string `json:"errors,omitempty"`
	// Warnings lists non-fatal issues.
	Warnings []string `json:"warnings,omitempty"`
}
