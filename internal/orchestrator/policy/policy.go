// Package policy defines configurable policy parameters for orchestrator behavior.
// It centralizes the thresholds, budgets and scoring weights of the control
// loop so they can be configured and tested.
package policy

import "time"

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Loop policies
	Loop LoopPolicy

	// Task selection policies
	Selection SelectionPolicy

	// Validation and correction policies
	Validation ValidationPolicy

	// Execution policies
	Execution ExecutionPolicy

	// Event policies
	Events EventPolicy
}

// LoopPolicy bounds a single orchestration run.
type LoopPolicy struct {
	// MaxIterations is the iteration ceiling of the control loop.
	MaxIterations int

	// RunTimeout is the wall-clock deadline checked at the top of each iteration.
	RunTimeout time.Duration
}

// SelectionPolicy controls which ready tasks run in an iteration.
type SelectionPolicy struct {
	// MaxTasksPerIteration caps the tasks selected per iteration.
	MaxTasksPerIteration int

	// IterationBudget caps the summed estimated duration of selected tasks.
	// It only affects selection; a slow task is not preempted.
	IterationBudget time.Duration

	// DefaultTaskEstimate is assumed for tasks without an estimate.
	DefaultTaskEstimate time.Duration

	// PriorityWeight multiplies task priority in the selection score.
	PriorityWeight float64

	// CoreBonus is added for core task types (structure, cross-repo).
	CoreBonus float64

	// RelevanceWeight multiplies the request keyword overlap in [0,1].
	RelevanceWeight float64

	// RetryPenalty is subtracted per previous retry.
	RetryPenalty float64
}

// ValidationPolicy controls when corrections are applied.
type ValidationPolicy struct {
	// ConfidenceThreshold is the confidence below which corrections run and
	// above which a fully completed goal counts as achieved.
	ConfidenceThreshold float64

	// MaxRetries is the retry ceiling assigned to planned tasks.
	MaxRetries int
}

// ExecutionPolicy controls task execution.
type ExecutionPolicy struct {
	// MaxParallelTasks caps concurrent tasks within a batch. 1 runs sequentially.
	MaxParallelTasks int

	// TaskTimeout bounds a single handler call.
	TaskTimeout time.Duration
}

// EventPolicy controls event emission.
type EventPolicy struct {
	// BufferSize is the buffer size of the event channel.
	BufferSize int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Loop: LoopPolicy{
			MaxIterations: 10,
			RunTimeout:    30 * time.Minute,
		},
		Selection: SelectionPolicy{
			MaxTasksPerIteration: 3,
			IterationBudget:      1800 * time.Second,
			DefaultTaskEstimate:  300 * time.Second,
			PriorityWeight:       100,
			CoreBonus:            50,
			RelevanceWeight:      30,
			RetryPenalty:         20,
		},
		Validation: ValidationPolicy{
			ConfidenceThreshold: 0.75,
			MaxRetries:          3,
		},
		Execution: ExecutionPolicy{
			MaxParallelTasks: 1,
			TaskTimeout:      10 * time.Minute,
		},
		Events: EventPolicy{
			BufferSize: 100,
		},
	}
}

// Normalize resets out-of-range policy values to their defaults.
func (c *Config) Normalize() {
	d := Default()
	if c.Loop.MaxIterations < 1 {
		c.Loop.MaxIterations = d.Loop.MaxIterations
	}
	if c.Loop.RunTimeout <= 0 {
		c.Loop.RunTimeout = d.Loop.RunTimeout
	}
	if c.Selection.MaxTasksPerIteration < 1 {
		c.Selection.MaxTasksPerIteration = d.Selection.MaxTasksPerIteration
	}
	if c.Selection.IterationBudget <= 0 {
		c.Selection.IterationBudget = d.Selection.IterationBudget
	}
	if c.Selection.DefaultTaskEstimate <= 0 {
		c.Selection.DefaultTaskEstimate = d.Selection.DefaultTaskEstimate
	}
	if c.Selection.PriorityWeight <= 0 {
		c.Selection.PriorityWeight = d.Selection.PriorityWeight
	}
	if c.Selection.CoreBonus < 0 {
		c.Selection.CoreBonus = d.Selection.CoreBonus
	}
	if c.Selection.RelevanceWeight < 0 {
		c.Selection.RelevanceWeight = d.Selection.RelevanceWeight
	}
	if c.Selection.RetryPenalty < 0 {
		c.Selection.RetryPenalty = d.Selection.RetryPenalty
	}
	if c.Validation.ConfidenceThreshold <= 0 || c.Validation.ConfidenceThreshold > 1 {
		c.Validation.ConfidenceThreshold = d.Validation.ConfidenceThreshold
	}
	if c.Validation.MaxRetries < 0 {
		c.Validation.MaxRetries = d.Validation.MaxRetries
	}
	if c.Execution.MaxParallelTasks < 1 {
		c.Execution.MaxParallelTasks = d.Execution.MaxParallelTasks
	}
	if c.Execution.TaskTimeout <= 0 {
		c.Execution.TaskTimeout = d.Execution.TaskTimeout
	}
	if c.Events.BufferSize < 1 {
		c.Events.BufferSize = d.Events.BufferSize
	}
}
