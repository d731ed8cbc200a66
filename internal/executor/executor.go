// Package executor runs batches of ready tasks against the handler for each
// task type, recording status, timing and errors on the tasks and feeding
// outcomes back into the tool registry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jayasaisrikar/spoc-agent/internal/capability"
	"github.com/jayasaisrikar/spoc-agent/internal/tools"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// ErrUnknownTaskType is returned for task types with no registered handler.
var ErrUnknownTaskType = errors.New("unknown task type")

// DefaultTaskTimeout bounds a single handler call.
const DefaultTaskTimeout = 10 * time.Minute

// Handler executes one task. A returned error fails the task; collaborator
// failures a handler can absorb are reported as degraded envelopes instead.
type Handler func(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error)

// Config holds the collaborators of an Executor.
type Config struct {
	// Registry selects tools and tracks their performance. Required.
	Registry *tools.Registry
	// AI is the language-model capability. Optional.
	AI capability.AIClient
	// Store is the knowledge store. Optional.
	Store capability.KnowledgeStore
	// Diagrams renders mermaid diagrams. Optional.
	Diagrams capability.DiagramGenerator
	// MaxParallel caps concurrent tasks within one batch. Values below 2 run sequentially.
	MaxParallel int
	// TaskTimeout bounds each handler call. Zero uses DefaultTaskTimeout.
	TaskTimeout time.Duration
}

// ExecutionRecord is one entry of the executor's history.
type ExecutionRecord struct {
	TaskID    string          `json:"task_id"`
	TaskType  models.TaskType `json:"task_type"`
	Tool      string          `json:"tool"`
	Success   bool            `json:"success"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Executor dispatches tasks to handlers. It is safe for concurrent use.
type Executor struct {
	registry    *tools.Registry
	ai          capability.AIClient
	store       capability.KnowledgeStore
	diagrams    capability.DiagramGenerator
	maxParallel int
	taskTimeout time.Duration

	mu       sync.RWMutex
	handlers map[models.TaskType]Handler
	history  []ExecutionRecord
	debugLog func(format string, args ...interface{})
}

// New creates an Executor with the built-in handlers installed.
func New(cfg Config) *Executor {
	if cfg.Registry == nil {
		cfg.Registry = tools.NewDefaultRegistry()
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	e := &Executor{
		registry:    cfg.Registry,
		ai:          cfg.AI,
		store:       cfg.Store,
		diagrams:    cfg.Diagrams,
		maxParallel: cfg.MaxParallel,
		taskTimeout: cfg.TaskTimeout,
		handlers:    make(map[models.TaskType]Handler),
		debugLog:    func(format string, args ...interface{}) {},
	}
	e.installHandlers()
	return e
}

// SetDebugLog sets the debug logging function.
func (e *Executor) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		e.debugLog = fn
	}
}

// SetHandler installs or replaces the handler for a task type.
func (e *Executor) SetHandler(taskType models.TaskType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		delete(e.handlers, taskType)
		return
	}
	e.handlers[taskType] = h
}

// Registry returns the tool registry the executor reports to.
func (e *Executor) Registry() *tools.Registry {
	return e.registry
}

// ExecuteBatch runs tasks to completion or failure and returns one result
// envelope per task ID. It never fails: handler errors, panics, timeouts and
// unknown task types mark the task failed and yield an error envelope.
// Tasks run in input order, or concurrently up to MaxParallel.
func (e *Executor) ExecuteBatch(ctx context.Context, tasks []*models.Task, ectx *models.ExecutionContext) map[string]models.Result {
	results := make(map[string]models.Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	if e.maxParallel < 2 || len(tasks) == 1 {
		for _, task := range tasks {
			results[task.ID] = e.executeOne(ctx, task, ectx)
		}
		return results
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for _, task := range tasks {
		g.Go(func() error {
			res := e.executeOne(ctx, task, ectx)
			mu.Lock()
			results[task.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// executeOne runs a single task and records the outcome.
func (e *Executor) executeOne(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) models.Result {
	if err := task.Transition(models.TaskStatusInProgress); err != nil {
		e.debugLog("[executor] skipping %s: %v", task.ID, err)
		res := models.ErrorResult(err, 0)
		res[models.ResultKeyTaskType] = string(task.Type)
		return res
	}

	start := time.Now()
	task.StartedAt = &start

	tool := e.registry.SelectBest(task.Type, ectx)
	if tool != "" {
		task.ToolsUsed = append(task.ToolsUsed, tool)
	}
	e.debugLog("[executor] %s (%s) -> tool %q", task.ID, task.Type, tool)

	res, err := e.dispatch(ctx, task, ectx)
	done := time.Now()
	task.CompletedAt = &done
	elapsed := done.Sub(start)

	if err != nil {
		task.Status = models.TaskStatusFailed
		task.ErrorHistory = append(task.ErrorHistory, err.Error())
		if tool != "" {
			e.registry.UpdatePerformance(tool, false, 0)
		}
		e.record(task, tool, false, elapsed, err.Error())
		e.debugLog("[executor] %s failed: %v", task.ID, err)

		res = models.ErrorResult(err, 0)
		res[models.ResultKeyTaskType] = string(task.Type)
		return res
	}

	if res == nil {
		res = models.Result{}
	}
	res[models.ResultKeyTaskType] = string(task.Type)
	task.Result = res
	task.Confidence = res.ConfidenceOr(0)
	task.ActualDuration = elapsed
	task.Status = models.TaskStatusCompleted
	if tool != "" {
		e.registry.UpdatePerformance(tool, true, elapsed)
	}
	msg, _ := res.Error()
	e.record(task, tool, true, elapsed, msg)
	e.debugLog("[executor] %s completed in %s (confidence=%.2f)", task.ID, elapsed.Round(time.Millisecond), task.Confidence)
	return res
}

// dispatch calls the task's handler under the per-task timeout, converting
// panics and deadline overruns into errors.
func (e *Executor) dispatch(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (res models.Result, err error) {
	e.mu.RLock()
	h, ok := e.handlers[task.Type]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}

	tctx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	res, err = h(tctx, task, ectx)
	if err == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("task %s timed out after %s", task.ID, e.taskTimeout)
	}
	return res, err
}

func (e *Executor) record(task *models.Task, tool string, success bool, d time.Duration, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, ExecutionRecord{
		TaskID:    task.ID,
		TaskType:  task.Type,
		Tool:      tool,
		Success:   success,
		Duration:  d,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// History returns a copy of the execution history.
func (e *Executor) History() []ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]ExecutionRecord(nil), e.history...)
}

// Metrics summarizes execution history and tool performance.
func (e *Executor) Metrics() map[string]interface{} {
	e.mu.RLock()
	total := len(e.history)
	succeeded := 0
	var elapsed time.Duration
	for _, rec := range e.history {
		if rec.Success {
			succeeded++
		}
		elapsed += rec.Duration
	}
	e.mu.RUnlock()

	m := map[string]interface{}{
		"total_executions": total,
		"tool_performance": e.registry.Metrics(),
	}
	if total > 0 {
		m["success_rate"] = float64(succeeded) / float64(total)
		m["avg_execution_time"] = (elapsed / time.Duration(total)).Seconds()
	} else {
		m["success_rate"] = 0.0
		m["avg_execution_time"] = 0.0
	}
	return m
}
