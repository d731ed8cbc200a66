package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being executed.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusRetrying indicates a failed task was re-queued for another attempt.
	TaskStatusRetrying TaskStatus = "retrying"
	// TaskStatusCancelled indicates the task was abandoned before it ran.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusRetrying, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Runnable returns true if a task in this status may be picked for execution.
func (s TaskStatus) Runnable() bool {
	return s == TaskStatusPending || s == TaskStatusRetrying
}

// Terminal returns true if no further transitions are expected without a retry.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
	TaskStatusFailed:     {TaskStatusRetrying},
	TaskStatusRetrying:   {TaskStatusInProgress, TaskStatusPending, TaskStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaskType identifies which handler executes a task.
type TaskType string

const (
	TaskTypeAnalyzeStructure    TaskType = "analyze_structure"
	TaskTypeExtractPatterns     TaskType = "extract_patterns"
	TaskTypeValidateAnalysis    TaskType = "validate_analysis"
	TaskTypeSuggestFeatures     TaskType = "suggest_features"
	TaskTypeGenerateDiagram     TaskType = "generate_diagram"
	TaskTypeRefineResults       TaskType = "refine_results"
	TaskTypeCrossRepoAnalysis   TaskType = "cross_repo_analysis"
	TaskTypeTechStackMapping    TaskType = "tech_stack_mapping"
	TaskTypeDependencyAnalysis  TaskType = "dependency_analysis"
	TaskTypeTeamRecommendations TaskType = "team_recommendations"
	TaskTypeGoalDecomposition   TaskType = "goal_decomposition"
	TaskTypePlanValidation      TaskType = "plan_validation"
	TaskTypeSelfCorrection      TaskType = "self_correction"
	TaskTypeKnowledgeSynthesis  TaskType = "knowledge_synthesis"
	TaskTypeContextEnrichment   TaskType = "context_enrichment"
)

// AllTaskTypes lists every known task type in declaration order.
var AllTaskTypes = []TaskType{
	TaskTypeAnalyzeStructure,
	TaskTypeExtractPatterns,
	TaskTypeValidateAnalysis,
	TaskTypeSuggestFeatures,
	TaskTypeGenerateDiagram,
	TaskTypeRefineResults,
	TaskTypeCrossRepoAnalysis,
	TaskTypeTechStackMapping,
	TaskTypeDependencyAnalysis,
	TaskTypeTeamRecommendations,
	TaskTypeGoalDecomposition,
	TaskTypePlanValidation,
	TaskTypeSelfCorrection,
	TaskTypeKnowledgeSynthesis,
	TaskTypeContextEnrichment,
}

// Valid returns true if the task type is a known value.
func (t TaskType) Valid() bool {
	for _, known := range AllTaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Core returns true for the task types the scheduler favours.
func (t TaskType) Core() bool {
	return t == TaskTypeAnalyzeStructure || t == TaskTypeCrossRepoAnalysis
}

// DefaultMaxRetries is the retry ceiling assigned to new tasks.
const DefaultMaxRetries = 3

// Task represents a unit of analysis work.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type selects the handler that executes the task.
	Type TaskType `json:"type"`
	// Description is a human-readable summary of the work.
	Description string `json:"description"`
	// Inputs holds handler parameters (repo_name, repo_data, user_request, ...).
	Inputs map[string]interface{} `json:"inputs,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders ready tasks; higher runs first.
	Priority int `json:"priority"`
	// Confidence is the confidence reported by the last successful run, in [0,1].
	Confidence float64 `json:"confidence"`
	// RetryCount is the number of times this task has been re-queued.
	RetryCount int `json:"retry_count,omitempty"`
	// MaxRetries is the retry ceiling for this task.
	MaxRetries int `json:"max_retries"`
	// EstimatedDuration is the planner's estimate of the run time.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// ActualDuration is the measured run time of the last attempt.
	ActualDuration time.Duration `json:"actual_duration,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the last attempt started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Result is the payload returned by the handler.
	Result Result `json:"result,omitempty"`
	// ValidationResults records every validation outcome that judged this task.
	ValidationResults []ValidationResult `json:"validation_results,omitempty"`
	// ToolsUsed lists tool names that attempted the task, in order.
	ToolsUsed []string `json:"tools_used,omitempty"`
	// ErrorHistory lists error messages from failed attempts, in order.
	ErrorHistory []string `json:"error_history,omitempty"`
}

// NewTask creates a pending task with the default retry ceiling.
func NewTask(id string, taskType TaskType, description string, inputs map[string]interface{}) *Task {
	if inputs == nil {
		inputs = make(map[string]interface{})
	}
	return &Task{
		ID:          id,
		Type:        taskType,
		Description: description,
		Inputs:      inputs,
		Status:      TaskStatusPending,
		Priority:    1,
		MaxRetries:  DefaultMaxRetries,
		CreatedAt:   time.Now(),
	}
}

// Transition moves the task to next, rejecting moves the lifecycle does not allow.
func (t *Task) Transition(next TaskStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

// CanRetry reports whether the task is below its retry ceiling.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// DependenciesMet returns true iff every dependency is in the completed collection.
func (t *Task) DependenciesMet(completed map[string]*Task) bool {
	for _, dep := range t.DependsOn {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// InputString returns a string input or "" when absent or of another type.
func (t *Task) InputString(key string) string {
	if v, ok := t.Inputs[key].(string); ok {
		return v
	}
	return ""
}

// InputBool returns a boolean input or false when absent.
func (t *Task) InputBool(key string) bool {
	v, _ := t.Inputs[key].(bool)
	return v
}

// InputStrings returns a string slice input, accepting []string or []interface{}.
func (t *Task) InputStrings(key string) []string {
	switch v := t.Inputs[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
