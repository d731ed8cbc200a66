package models

import "time"

// ResourceConstraints bounds what a single orchestration run may consume.
type ResourceConstraints struct {
	// MaxParallelTasks caps the number of tasks selected per iteration.
	MaxParallelTasks int `json:"max_parallel_tasks"`
	// IterationBudget caps the summed estimated duration of one iteration's tasks.
	IterationBudget time.Duration `json:"iteration_budget"`
	// MaxDuration is the wall-clock deadline for the whole run.
	MaxDuration time.Duration `json:"max_duration"`
}

// ExecutionContext is the ambient state of one orchestration run.
// It is owned by that run and discarded when the run ends.
type ExecutionContext struct {
	// RunID identifies the orchestration run.
	RunID string `json:"run_id"`
	// Iteration is the current loop iteration, starting at 1.
	Iteration int `json:"iteration"`
	// StartTime is when the run began.
	StartTime time.Time `json:"start_time"`
	// AvailableTools is the set of tool names the run may dispatch to.
	AvailableTools map[string]bool `json:"available_tools"`
	// Constraints bounds the run.
	Constraints ResourceConstraints `json:"constraints"`
	// UserRequest is the free-text request that started the run.
	UserRequest string `json:"user_request,omitempty"`
	// UserPreferences holds caller-supplied preferences (user_id, ...).
	UserPreferences map[string]interface{} `json:"user_preferences,omitempty"`
	// OrgContext carries organizational data gathered before planning.
	OrgContext map[string]interface{} `json:"org_context,omitempty"`
}

// NewExecutionContext creates a context stamped with the current time.
func NewExecutionContext(runID string, tools []string, constraints ResourceConstraints) *ExecutionContext {
	available := make(map[string]bool, len(tools))
	for _, name := range tools {
		available[name] = true
	}
	return &ExecutionContext{
		RunID:           runID,
		StartTime:       time.Now(),
		AvailableTools:  available,
		Constraints:     constraints,
		UserPreferences: make(map[string]interface{}),
		OrgContext:      make(map[string]interface{}),
	}
}

// Elapsed returns the wall-clock time since the run started.
func (c *ExecutionContext) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

// DeadlineExceeded reports whether the run has outlived Constraints.MaxDuration.
func (c *ExecutionContext) DeadlineExceeded() bool {
	return c.Constraints.MaxDuration > 0 && c.Elapsed() > c.Constraints.MaxDuration
}
