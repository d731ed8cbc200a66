package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has been planned and the loop is starting.
	EventRunStarted EventType = "run_started"
	// EventTaskStarted indicates a task was selected for execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventIterationDone indicates an iteration finished validation.
	EventIterationDone EventType = "iteration_done"
	// EventReplanned indicates corrective tasks were added to the goal.
	EventReplanned EventType = "replanned"
	// EventTasksRetried indicates failed tasks were re-queued.
	EventTasksRetried EventType = "tasks_retried"
	// EventRunDone indicates the run finished, successfully or not.
	EventRunDone EventType = "run_done"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// These events are used to update the TUI and track progress.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run the event belongs to.
	RunID string
	// GoalID is the run's primary goal.
	GoalID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskType is the type of the related task, if applicable.
	TaskType string
	// Iteration is the loop iteration the event happened in.
	Iteration int
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Confidence is the latest validation confidence (iteration and run events).
	Confidence float64
	// Completion is the goal completion percentage (iteration and run events).
	Completion float64
	// Count is the number of tasks affected (replanned and retried events).
	Count int
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed run time.
	Duration time.Duration
}
