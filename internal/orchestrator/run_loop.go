package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jayasaisrikar/spoc-agent/internal/graph"
	"github.com/jayasaisrikar/spoc-agent/internal/history"
	"github.com/jayasaisrikar/spoc-agent/internal/planner"
	"github.com/jayasaisrikar/spoc-agent/internal/validation"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// Warnings attached to results of runs that ended early.
const (
	warnStopped  = "run stopped before the goal was achieved"
	warnDeadline = "run deadline exceeded before the goal was achieved"
)

// runState is the state of one orchestration run. It is owned by the
// goroutine executing the run.
type runState struct {
	id        string
	kind      string
	request   string
	targets   []string
	start     time.Time
	goal      *models.Goal
	graph     *graph.DependencyGraph
	ectx      *models.ExecutionContext
	completed map[string]*models.Task
	failed    map[string]*models.Task
	results   map[string]models.Result
	iteration int
	warnings  []string
}

func newRunState(kind string, plan *planner.Plan, ectx *models.ExecutionContext) *runState {
	rs := &runState{
		id:        ectx.RunID,
		kind:      kind,
		request:   ectx.UserRequest,
		start:     ectx.StartTime,
		ectx:      ectx,
		graph:     graph.New(),
		completed: make(map[string]*models.Task),
		failed:    make(map[string]*models.Task),
		results:   make(map[string]models.Result),
	}
	if plan != nil {
		rs.goal = plan.Goal
		if plan.Goal != nil {
			rs.targets, _ = plan.Goal.Context["targets"].([]string)
			if name := plan.Goal.ContextString("repo_name"); name != "" && rs.targets == nil {
				rs.targets = []string{name}
			}
		}
	}
	return rs
}

func (rs *runState) goalID() string {
	if rs.goal == nil {
		return ""
	}
	return rs.goal.ID
}

func (rs *runState) completion() float64 {
	if rs.goal == nil {
		return 0
	}
	return rs.goal.CompletionPercentage
}

// activeTasks returns tasks neither completed nor failed, in graph order.
func (rs *runState) activeTasks() []*models.Task {
	var out []*models.Task
	for _, t := range rs.graph.Tasks() {
		if _, done := rs.completed[t.ID]; done {
			continue
		}
		if _, bad := rs.failed[t.ID]; bad {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (rs *runState) failedTasks() []*models.Task {
	ids := sortedKeys(rs.failed)
	out := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, rs.failed[id])
	}
	return out
}

// runPlan registers the plan's tasks and drives the loop to completion.
// The returned run state is never nil, so failures can still report the
// partial results gathered so far.
func (o *Orchestrator) runPlan(ctx context.Context, kind string, plan *planner.Plan, ectx *models.ExecutionContext) (rs *runState, err error) {
	rs = newRunState(kind, plan, ectx)
	rs.graph.SetDebugLog(o.logger.Log)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration panic: %v", r)
		}
		if rs.goal != nil {
			if err != nil {
				rs.goal.Status = models.GoalStatusFailed
			}
			o.untrackGoal(rs.goal)
		}
		o.publishCounts(rs)
	}()

	if plan == nil || plan.Goal == nil {
		return rs, errors.New("planner produced no goal")
	}
	for _, t := range plan.Tasks {
		t.MaxRetries = o.policy.Validation.MaxRetries
	}
	if err := rs.graph.Build(plan.Tasks); err != nil {
		return rs, fmt.Errorf("build task graph: %w", err)
	}
	o.trackGoal(rs.goal.ID, rs.goal.Status)
	o.publishCounts(rs)

	o.emitter.Emit(OrchestratorEvent{
		Type:    EventRunStarted,
		RunID:   rs.id,
		GoalID:  rs.goal.ID,
		Message: rs.goal.Description,
		Count:   len(plan.Tasks),
	})
	o.logger.Log("[orchestrator] run %s: goal %s with %d tasks", rs.id, rs.goal.ID, len(plan.Tasks))

	if err := o.loop(ctx, rs); err != nil {
		return rs, err
	}
	o.finalize(rs)
	return rs, nil
}

// loop iterates until the goal is achieved, no task is ready, the
// iteration ceiling is hit, or the run is stopped.
func (o *Orchestrator) loop(ctx context.Context, rs *runState) error {
	for rs.iteration < o.policy.Loop.MaxIterations && rs.goal.CompletionPercentage < 100 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		if err := o.control.WaitIfPaused(ctx); err != nil {
			if !errors.Is(err, ErrStopped) {
				return fmt.Errorf("run interrupted: %w", err)
			}
			o.logger.Log("[orchestrator] run %s: stopped", rs.id)
			rs.warnings = append(rs.warnings, warnStopped)
			break
		}
		if rs.ectx.DeadlineExceeded() {
			o.logger.Log("[orchestrator] run %s: deadline exceeded after %d iterations", rs.id, rs.iteration)
			rs.warnings = append(rs.warnings, warnDeadline)
			break
		}
		if o.signals.ShouldStop() {
			o.logger.Log("[orchestrator] run %s: stop signal received", rs.id)
			rs.warnings = append(rs.warnings, warnStopped)
			break
		}

		rs.iteration++
		rs.ectx.Iteration = rs.iteration
		o.logger.Log("[orchestrator] run %s: iteration %d", rs.id, rs.iteration)

		done, err := o.iterate(ctx, rs)
		o.publishCounts(rs)
		if err != nil {
			o.logger.Log("[orchestrator] run %s: iteration %d failed: %v", rs.id, rs.iteration, err)
			continue
		}
		if done {
			break
		}
	}
	return nil
}

// iterate runs one select, execute, validate, correct cycle. It reports
// done when there is nothing left to run or the goal is achieved.
// Panics are returned as errors so the loop can carry on.
func (o *Orchestrator) iterate(ctx context.Context, rs *runState) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panic: %v", r)
		}
	}()

	selected := o.selectNextTasks(rs)
	if len(selected) == 0 {
		o.logger.Log("[orchestrator] run %s: no ready tasks", rs.id)
		return true, nil
	}

	for _, t := range selected {
		o.emitter.Emit(OrchestratorEvent{
			Type:      EventTaskStarted,
			RunID:     rs.id,
			GoalID:    rs.goal.ID,
			TaskID:    t.ID,
			TaskType:  string(t.Type),
			Iteration: rs.iteration,
			Message:   t.Description,
		})
	}

	batch := o.executor.ExecuteBatch(ctx, selected, rs.ectx)
	for id, res := range batch {
		rs.results[id] = res
	}
	for _, t := range selected {
		o.settle(rs, t)
	}

	v := o.validator.ValidateAndCorrect(rs.results, rs.goal, rs.ectx)
	rs.goal.UpdateProgress(rs.completed)

	if v.Confidence < o.policy.Validation.ConfidenceThreshold {
		o.applyCorrections(rs, v)
		rs.goal.UpdateProgress(rs.completed)
	}

	o.recordIteration(v, len(batch))
	o.emitter.Emit(OrchestratorEvent{
		Type:       EventIterationDone,
		RunID:      rs.id,
		GoalID:     rs.goal.ID,
		Iteration:  rs.iteration,
		Confidence: v.Confidence,
		Completion: rs.goal.CompletionPercentage,
		Count:      len(batch),
		Duration:   time.Since(rs.start),
	})

	if o.goalAchieved(rs) {
		rs.goal.Status = models.GoalStatusCompleted
		o.trackGoal(rs.goal.ID, rs.goal.Status)
		o.logger.Log("[orchestrator] run %s: goal %s achieved", rs.id, rs.goal.ID)
		return true, nil
	}
	return false, nil
}

// settle moves an executed task into the completed or failed collection.
func (o *Orchestrator) settle(rs *runState, t *models.Task) {
	event := OrchestratorEvent{
		RunID:      rs.id,
		GoalID:     rs.goal.ID,
		TaskID:     t.ID,
		TaskType:   string(t.Type),
		Iteration:  rs.iteration,
		Confidence: t.Confidence,
		Duration:   t.ActualDuration,
	}

	switch t.Status {
	case models.TaskStatusCompleted:
		rs.completed[t.ID] = t
		delete(rs.failed, t.ID)
		rs.graph.MarkComplete(t.ID)
		event.Type = EventTaskCompleted
	case models.TaskStatusFailed:
		rs.failed[t.ID] = t
		event.Type = EventTaskFailed
		if n := len(t.ErrorHistory); n > 0 {
			event.Error = errors.New(t.ErrorHistory[n-1])
		}
	default:
		return
	}
	o.emitter.Emit(event)
}

// selectNextTasks picks up to MaxTasksPerIteration ready tasks by score
// whose estimates fit the iteration budget. A task that does not fit is
// skipped and a smaller one may still be taken.
func (o *Orchestrator) selectNextTasks(rs *runState) []*models.Task {
	sel := o.policy.Selection

	type candidate struct {
		task  *models.Task
		score float64
	}
	var ready []candidate
	for _, id := range rs.graph.GetReady() {
		t := rs.graph.GetTask(id)
		if t == nil || !t.DependenciesMet(rs.completed) {
			continue
		}
		ready = append(ready, candidate{task: t, score: o.score(t, rs.ectx)})
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].score > ready[j].score })

	var selected []*models.Task
	var total time.Duration
	for _, c := range ready {
		if len(selected) >= sel.MaxTasksPerIteration {
			break
		}
		est := c.task.EstimatedDuration
		if est <= 0 {
			est = sel.DefaultTaskEstimate
		}
		if total+est > sel.IterationBudget {
			continue
		}
		selected = append(selected, c.task)
		total += est
	}

	if len(selected) > 0 {
		o.logger.Log("[orchestrator] run %s: selected %d of %d ready tasks (%s estimated)", rs.id, len(selected), len(ready), total)
	}
	return selected
}

// score ranks a ready task: priority first, then core task types, overlap
// with the user's request, and a penalty per retry.
func (o *Orchestrator) score(t *models.Task, ectx *models.ExecutionContext) float64 {
	sel := o.policy.Selection
	s := float64(t.Priority) * sel.PriorityWeight
	if t.Type.Core() {
		s += sel.CoreBonus
	}
	if t.InputString("user_request") != "" && ectx != nil {
		request, _ := ectx.OrgContext["user_request"].(string)
		if request == "" {
			request = ectx.UserRequest
		}
		if request != "" {
			s += relevance(request, t.Description) * sel.RelevanceWeight
		}
	}
	s -= float64(t.RetryCount) * sel.RetryPenalty
	return s
}

// relevance is the share of request words that appear in the description.
func relevance(request, description string) float64 {
	words := wordSet(request)
	if len(words) == 0 {
		return 0
	}
	desc := wordSet(description)
	overlap := 0
	for w := range words {
		if desc[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(words))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// applyCorrections acts on the validator's recommendations. A
// recommendation mentioning "replan" adds corrective tasks; one mentioning
// only "retry" re-queues failed tasks that have retries left. Each action
// runs at most once per call.
func (o *Orchestrator) applyCorrections(rs *runState, v *models.ValidationResult) {
	replan, retry := false, false
	for _, rec := range v.Recommendations {
		lower := strings.ToLower(rec)
		switch {
		case strings.Contains(lower, "replan"):
			replan = true
		case strings.Contains(lower, "retry"):
			retry = true
		}
	}

	if replan {
		tasks := o.planner.ReplanForFailures(rs.goal, rs.failedTasks(), v.Issues)
		for _, t := range tasks {
			t.MaxRetries = o.policy.Validation.MaxRetries
		}
		if len(tasks) > 0 {
			if err := rs.graph.Add(tasks...); err != nil {
				o.logger.Log("[orchestrator] run %s: register corrective tasks: %v", rs.id, err)
			} else {
				o.emitter.Emit(OrchestratorEvent{
					Type:      EventReplanned,
					RunID:     rs.id,
					GoalID:    rs.goal.ID,
					Iteration: rs.iteration,
					Count:     len(tasks),
				})
			}
		}
	}

	if retry {
		n := 0
		for _, t := range rs.failedTasks() {
			if !t.CanRetry() {
				continue
			}
			if err := t.Transition(models.TaskStatusRetrying); err != nil {
				o.logger.Log("[orchestrator] run %s: retry %s: %v", rs.id, t.ID, err)
				continue
			}
			t.RetryCount++
			delete(rs.failed, t.ID)
			n++
		}
		if n > 0 {
			o.emitter.Emit(OrchestratorEvent{
				Type:      EventTasksRetried,
				RunID:     rs.id,
				GoalID:    rs.goal.ID,
				Iteration: rs.iteration,
				Count:     n,
			})
		}
	}
}

// goalAchieved reports whether every task of the goal completed with a
// mean reported confidence at or above the threshold.
func (o *Orchestrator) goalAchieved(rs *runState) bool {
	for _, id := range rs.goal.AssociatedTasks {
		if _, ok := rs.completed[id]; !ok {
			return false
		}
	}

	var sum float64
	var n int
	for _, id := range sortedResultIDs(rs.results) {
		if c, ok := rs.results[id].Confidence(); ok {
			sum += c
			n++
		}
	}
	if n == 0 {
		return false
	}
	return sum/float64(n) >= o.policy.Validation.ConfidenceThreshold
}

// finalize runs the final validation and attaches the run metadata under
// validation.MetadataKey.
func (o *Orchestrator) finalize(rs *runState) {
	final := o.validator.FinalValidation(rs.results, rs.goal)

	resolved := 0
	for _, t := range rs.completed {
		if t.RetryCount > 0 {
			resolved++
		}
	}

	rs.results[validation.MetadataKey] = models.Result{
		"run_id":           rs.id,
		"goal_id":          rs.goal.ID,
		"iterations":       rs.iteration,
		"duration":         time.Since(rs.start).Seconds(),
		"goal_completion":  rs.goal.CompletionPercentage,
		"final_confidence": final.Confidence,
		"issues_resolved":  resolved,
		"final_issues":     append([]string{}, final.Issues...),
	}
	if len(final.Issues) > 0 {
		rs.warnings = append(rs.warnings, final.Issues...)
	}
	o.logger.Log("[orchestrator] run %s: finalized after %d iterations (completion %.0f%%, confidence %.2f)",
		rs.id, rs.iteration, rs.goal.CompletionPercentage, final.Confidence)
}

// metadata returns the run metadata attached by finalize.
func (rs *runState) metadata() map[string]interface{} {
	return metadataOf(rs.results)
}

// partialResults summarizes a run that failed before finalizing.
func (rs *runState) partialResults() map[string]interface{} {
	last := make(map[string]interface{}, len(rs.completed))
	for id, t := range rs.completed {
		last[id] = t.Result
	}
	return map[string]interface{}{
		"completed_tasks": len(rs.completed),
		"failed_tasks":    len(rs.failed),
		"active_tasks":    len(rs.activeTasks()),
		"last_results":    last,
	}
}

// record builds the history entry for a finished run.
func (rs *runState) record(result *models.AnalysisResult) *history.Run {
	run := &history.Run{
		ID:         rs.id,
		GoalID:     rs.goalID(),
		Kind:       rs.kind,
		Request:    rs.request,
		Targets:    rs.targets,
		Success:    result.Success,
		Confidence: result.Confidence,
		Completion: rs.completion(),
		Iterations: rs.iteration,
		StartedAt:  rs.start,
		Duration:   result.ExecutionTime,
		Errors:     result.Errors,
	}
	for _, t := range rs.graph.Tasks() {
		outcome := history.TaskOutcome{
			TaskID:     t.ID,
			TaskType:   string(t.Type),
			Status:     string(t.Status),
			RetryCount: t.RetryCount,
			Confidence: t.Confidence,
			Duration:   t.ActualDuration,
		}
		if n := len(t.ErrorHistory); n > 0 {
			outcome.Error = t.ErrorHistory[n-1]
		}
		run.Tasks = append(run.Tasks, outcome)
	}
	return run
}
