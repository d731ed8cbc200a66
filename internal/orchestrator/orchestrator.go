package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayasaisrikar/spoc-agent/internal/capability"
	"github.com/jayasaisrikar/spoc-agent/internal/executor"
	"github.com/jayasaisrikar/spoc-agent/internal/history"
	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator/policy"
	"github.com/jayasaisrikar/spoc-agent/internal/planner"
	"github.com/jayasaisrikar/spoc-agent/internal/tools"
	"github.com/jayasaisrikar/spoc-agent/internal/validation"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// Analysis types reported in AnalysisResult.AnalysisType.
const (
	AnalysisTypeRepository   = "single_repository"
	AnalysisTypeOrganization = "organizational"
)

// Orchestrator drives analysis runs: plan, then iterate select, execute,
// validate and correct, then finalize and synthesize a report.
// Each call to AnalyzeRepository or AnalyzeOrganization owns its own run
// state; concurrent runs share only the collaborators and the tool registry.
type Orchestrator struct {
	ai       capability.AIClient
	store    capability.KnowledgeStore
	registry *tools.Registry

	planner   *planner.Planner
	executor  *executor.Executor
	validator *validation.Validator

	policy   *policy.Config
	logger   *DebugLogger
	emitter  *EventEmitter
	recorder RunRecorder
	signals  *SignalWatcher
	control  *PauseController
	newRunID func() string

	mu          sync.Mutex
	goals       map[string]models.GoalStatus
	counts      taskCounts
	performance map[string]interface{}

	closeOnce sync.Once
}

// taskCounts is the task breakdown of the most recently updated run.
type taskCounts struct {
	active, completed, failed int
}

// New creates an Orchestrator with the required collaborators and options.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	pol := o.policyConfig
	if pol == nil {
		pol = policy.Default()
	}
	pol.Normalize()

	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	setPackageLogger(logger)

	registry := o.registry
	if registry == nil {
		registry = tools.NewDefaultRegistry()
	}
	registry.SetDebugLog(logger.Log)

	p := o.planner
	if p == nil {
		p = planner.New(req.Store)
		p.SetDebugLog(logger.Log)
	}

	exec := o.executor
	if exec == nil {
		exec = executor.New(executor.Config{
			Registry:    registry,
			AI:          req.AI,
			Store:       req.Store,
			Diagrams:    o.diagrams,
			MaxParallel: pol.Execution.MaxParallelTasks,
			TaskTimeout: pol.Execution.TaskTimeout,
		})
		exec.SetDebugLog(logger.Log)
	}

	v := o.validator
	if v == nil {
		v = validation.New(pol.Validation.ConfidenceThreshold)
		v.SetDebugLog(logger.Log)
	}

	newRunID := o.newRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.New().String()[:8] }
	}

	return &Orchestrator{
		ai:          req.AI,
		store:       req.Store,
		registry:    exec.Registry(),
		planner:     p,
		executor:    exec,
		validator:   v,
		policy:      pol,
		logger:      logger,
		emitter:     NewEventEmitter(pol.Events.BufferSize),
		recorder:    o.recorder,
		signals:     o.signals,
		control:     NewPauseController(),
		newRunID:    newRunID,
		goals:       make(map[string]models.GoalStatus),
		performance: make(map[string]interface{}),
	}
}

// AnalyzeRepository runs the single-repository analysis of repoName.
// The returned result is never nil; run-level failures are reported
// through Success, Errors and the partial results in Data.
func (o *Orchestrator) AnalyzeRepository(ctx context.Context, repoName string, data models.RepositoryData, request string) *models.AnalysisResult {
	start := time.Now()
	ectx := o.newExecutionContext(request)
	ectx.OrgContext["current_repo"] = repoName
	ectx.OrgContext["repo_data"] = data
	ectx.OrgContext["user_request"] = request

	o.logger.Log("[orchestrator] run %s: analyze repository %s", ectx.RunID, repoName)
	plan := o.planner.PlanRepository(repoName, data, request)

	rs, err := o.runPlan(ctx, history.KindRepository, plan, ectx)
	if err != nil {
		return o.failed(ctx, rs, AnalysisTypeRepository, start, err)
	}

	result := &models.AnalysisResult{
		Success:       true,
		AnalysisType:  AnalysisTypeRepository,
		Confidence:    finalConfidence(rs.results, 0.7),
		Data:          synthesizeRepository(rs.results, repoName),
		Metadata:      rs.metadata(),
		Timestamp:     time.Now(),
		ExecutionTime: time.Since(start),
		Warnings:      rs.warnings,
	}
	o.finish(ctx, rs, result)
	return result
}

// AnalyzeOrganization runs the organization-wide analysis over targets.
// With no targets, repositories are discovered from the knowledge store.
// userID is carried in the run's user preferences.
func (o *Orchestrator) AnalyzeOrganization(ctx context.Context, request string, targets []string, userID string) *models.AnalysisResult {
	start := time.Now()
	ectx := o.newExecutionContext(request)
	if userID != "" {
		ectx.UserPreferences["user_id"] = userID
	}

	o.logger.Log("[orchestrator] run %s: analyze organization (%d targets)", ectx.RunID, len(targets))
	plan := o.planner.DecomposePrimaryGoal(ctx, request, targets)

	planned, _ := plan.Goal.Context["targets"].([]string)
	ectx.OrgContext = o.enrichOrgContext(ctx, planned)
	ectx.OrgContext["user_request"] = request

	rs, err := o.runPlan(ctx, history.KindOrganization, plan, ectx)
	if err != nil {
		return o.failed(ctx, rs, AnalysisTypeOrganization, start, err)
	}

	result := &models.AnalysisResult{
		Success:       true,
		AnalysisType:  AnalysisTypeOrganization,
		Confidence:    finalConfidence(rs.results, 0.7),
		Data:          synthesizeOrganization(rs.results, ectx.OrgContext),
		Metadata:      rs.metadata(),
		Timestamp:     time.Now(),
		ExecutionTime: time.Since(start),
		Warnings:      rs.warnings,
	}
	o.finish(ctx, rs, result)
	return result
}

func (o *Orchestrator) newExecutionContext(request string) *models.ExecutionContext {
	ectx := models.NewExecutionContext(o.newRunID(), o.registry.Names(), models.ResourceConstraints{
		MaxParallelTasks: o.policy.Selection.MaxTasksPerIteration,
		IterationBudget:  o.policy.Selection.IterationBudget,
		MaxDuration:      o.policy.Loop.RunTimeout,
	})
	ectx.UserRequest = request
	return ectx
}

// failed converts a run-level error into a failed AnalysisResult carrying
// whatever the run gathered before it failed.
func (o *Orchestrator) failed(ctx context.Context, rs *runState, analysisType string, start time.Time, err error) *models.AnalysisResult {
	o.logger.Log("[orchestrator] run failed: %v", err)
	result := &models.AnalysisResult{
		Success:       false,
		AnalysisType:  analysisType,
		Confidence:    0,
		Data:          rs.partialResults(),
		Timestamp:     time.Now(),
		ExecutionTime: time.Since(start),
		Errors:        []string{err.Error()},
		Warnings:      rs.warnings,
	}
	o.finish(ctx, rs, result)
	return result
}

// finish records the run and emits run_done.
func (o *Orchestrator) finish(ctx context.Context, rs *runState, result *models.AnalysisResult) {
	o.emitter.Emit(OrchestratorEvent{
		Type:       EventRunDone,
		RunID:      rs.id,
		GoalID:     rs.goalID(),
		Iteration:  rs.iteration,
		Message:    result.AnalysisType,
		Confidence: result.Confidence,
		Completion: rs.completion(),
		Duration:   result.ExecutionTime,
		Error:      resultError(result),
	})

	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveRun(ctx, rs.record(result)); err != nil {
		o.logger.Log("[orchestrator] record run %s: %v", rs.id, err)
	}
}

func resultError(result *models.AnalysisResult) error {
	if result.Success || len(result.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%s", result.Errors[0])
}

// GetSystemMetrics reports orchestrator, planner, executor and validator
// metrics. It has no side effects.
func (o *Orchestrator) GetSystemMetrics() map[string]interface{} {
	o.mu.Lock()
	active := 0
	for _, status := range o.goals {
		if status == models.GoalStatusActive {
			active++
		}
	}
	perf := make(map[string]interface{}, len(o.performance))
	for k, v := range o.performance {
		perf[k] = v
	}
	orch := map[string]interface{}{
		"active_goals":        active,
		"active_tasks":        o.counts.active,
		"completed_tasks":     o.counts.completed,
		"failed_tasks":        o.counts.failed,
		"performance_metrics": perf,
	}
	o.mu.Unlock()

	return map[string]interface{}{
		"orchestrator": orch,
		"planner":      o.planner.Metrics(),
		"executor":     o.executor.Metrics(),
		"validator":    o.validator.Metrics(),
	}
}

// Events returns the channel of orchestrator events. It is closed by Close.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// Pause holds every run before its next iteration.
func (o *Orchestrator) Pause() {
	o.control.Pause()
}

// Resume releases runs held by Pause.
func (o *Orchestrator) Resume() {
	o.control.Resume()
}

// IsPaused reports whether runs are held.
func (o *Orchestrator) IsPaused() bool {
	return o.control.IsPaused()
}

// Stop ends every run, current and future, at its next iteration
// boundary. Stopped runs still finalize and report what they gathered.
func (o *Orchestrator) Stop() {
	o.control.Stop()
}

// DroppedEventCount returns the number of events dropped because the
// events channel was full.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// Registry returns the tool registry shared by runs.
func (o *Orchestrator) Registry() *tools.Registry {
	return o.registry
}

// Close closes the events channel. It is safe to call more than once.
// The logger, signal watcher and recorder belong to the caller.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.emitter.Close()
	})
}

func (o *Orchestrator) trackGoal(id string, status models.GoalStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.goals[id] = status
}

// untrackGoal records the goal's final status. Goals left active by a run
// that ended early are dropped so active_goals counts only running goals.
func (o *Orchestrator) untrackGoal(g *models.Goal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if g.Status == models.GoalStatusActive {
		delete(o.goals, g.ID)
		return
	}
	o.goals[g.ID] = g.Status
}

func (o *Orchestrator) publishCounts(rs *runState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = taskCounts{
		active:    len(rs.activeTasks()),
		completed: len(rs.completed),
		failed:    len(rs.failed),
	}
}

func (o *Orchestrator) recordIteration(v *models.ValidationResult, tasksRun int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.performance["last_iteration_confidence"] = v.Confidence
	o.performance["tasks_completed"] = tasksRun
	o.performance["last_update"] = time.Now().Format(time.RFC3339)
}
