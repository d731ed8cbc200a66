package models

import "time"

// GoalStatus represents the lifecycle state of a goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusFailed    GoalStatus = "failed"
	GoalStatusPaused    GoalStatus = "paused"
)

// Valid returns true if the status is a known value.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalStatusActive, GoalStatusCompleted, GoalStatusFailed, GoalStatusPaused:
		return true
	default:
		return false
	}
}

// Goal is an objective composed of success criteria and associated tasks.
type Goal struct {
	// ID is the unique identifier for this goal.
	ID string `json:"id"`
	// Description states the objective.
	Description string `json:"description"`
	// SuccessCriteria lists the conditions the run is judged against.
	SuccessCriteria []string `json:"success_criteria"`
	// Deadline is the soft deadline for the goal, if any.
	Deadline *time.Time `json:"deadline,omitempty"`
	// Priority orders sibling goals; higher is more important.
	Priority int `json:"priority"`
	// SubGoals are owned exclusively by this goal.
	SubGoals []*Goal `json:"sub_goals,omitempty"`
	// AssociatedTasks references task IDs that contribute to the goal.
	AssociatedTasks []string `json:"associated_tasks,omitempty"`
	// CompletionPercentage is in [0,100].
	CompletionPercentage float64 `json:"completion_percentage"`
	// Status is the lifecycle state.
	Status GoalStatus `json:"status"`
	// Context carries free-form data such as the user request and target repositories.
	Context map[string]interface{} `json:"context,omitempty"`
}

// Progress returns the percentage of associated tasks present in completed.
// A goal with no associated tasks is 100% complete.
func (g *Goal) Progress(completed map[string]*Task) float64 {
	if len(g.AssociatedTasks) == 0 {
		return 100
	}
	done := 0
	for _, id := range g.AssociatedTasks {
		if _, ok := completed[id]; ok {
			done++
		}
	}
	return 100 * float64(done) / float64(len(g.AssociatedTasks))
}

// UpdateProgress recomputes CompletionPercentage from the completed collection.
func (g *Goal) UpdateProgress(completed map[string]*Task) float64 {
	g.CompletionPercentage = g.Progress(completed)
	return g.CompletionPercentage
}

// AddTasks appends task IDs that are not already associated.
func (g *Goal) AddTasks(ids ...string) {
	seen := make(map[string]bool, len(g.AssociatedTasks))
	for _, id := range g.AssociatedTasks {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			g.AssociatedTasks = append(g.AssociatedTasks, id)
			seen[id] = true
		}
	}
}

// ContextString returns a string context value or "".
func (g *Goal) ContextString(key string) string {
	if v, ok := g.Context[key].(string); ok {
		return v
	}
	return ""
}
