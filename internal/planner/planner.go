// Package planner turns an analysis request into a goal tree and a
// dependency-ordered task list, and generates corrective tasks when
// validation reports known classes of issues.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayasaisrikar/spoc-agent/internal/capability"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	// MaxTargets caps the repositories pulled from the store when none are given.
	MaxTargets = 20
	// GoalDeadline is how far out the primary goal's deadline is set.
	GoalDeadline = 2 * time.Hour
)

// Plan is a goal together with the tasks generated for it.
type Plan struct {
	Goal  *models.Goal
	Tasks []*models.Task
}

// PlanRecord is one entry of the planning history.
type PlanRecord struct {
	Timestamp      time.Time     `json:"timestamp"`
	GoalID         string        `json:"goal_id"`
	TasksGenerated int           `json:"tasks_generated"`
	TotalEstimated time.Duration `json:"total_estimated_time"`
	Repositories   []string      `json:"repositories"`
	UserRequest    string        `json:"user_request"`
}

// Planner builds plans. It is safe for concurrent use.
type Planner struct {
	store capability.KnowledgeStore
	newID func(prefix string) string

	mu       sync.Mutex
	history  []PlanRecord
	replans  int
	debugLog func(format string, args ...interface{})
}

// New creates a Planner. The store may be nil, in which case targets are
// planned by name only and none are discovered automatically.
func New(store capability.KnowledgeStore) *Planner {
	return &Planner{
		store:    store,
		newID:    defaultID,
		debugLog: func(format string, args ...interface{}) {},
	}
}

func defaultID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// SetDebugLog sets the debug logging function.
func (p *Planner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
	}
}

// SetIDGenerator replaces the ID generator (mainly for testing).
func (p *Planner) SetIDGenerator(fn func(prefix string) string) {
	if fn != nil {
		p.newID = fn
	}
}

// DecomposePrimaryGoal builds the organization analysis plan for request
// over targets. With no targets, up to MaxTargets repositories are taken
// from the knowledge store. Planning never fails: store errors shrink the
// plan instead.
func (p *Planner) DecomposePrimaryGoal(ctx context.Context, request string, targets []string) *Plan {
	if len(targets) == 0 {
		targets = p.discoverTargets(ctx)
	}

	deadline := time.Now().Add(GoalDeadline)
	goal := &models.Goal{
		ID:          p.newID("org_analysis"),
		Description: fmt.Sprintf("Analyze organization's %d repositories and provide insights", len(targets)),
		SuccessCriteria: []string{
			"All target repositories analyzed",
			"Cross-repository patterns identified",
			"Technology stack mapping completed",
			"Team recommendations generated",
			"Organizational insights synthesized",
		},
		Deadline: &deadline,
		Priority: 1,
		Status:   models.GoalStatusActive,
		Context: map[string]interface{}{
			"user_request": request,
			"targets":      append([]string(nil), targets...),
		},
	}
	goal.SubGoals = p.subGoals(targets, request)

	tasks := p.organizationTasks(ctx, targets, request)
	for _, t := range tasks {
		goal.AddTasks(t.ID)
	}

	p.recordPlan(goal, tasks, targets, request)
	p.debugLog("[planner] goal %s: %d sub-goals, %d tasks", goal.ID, len(goal.SubGoals), len(tasks))
	return &Plan{Goal: goal, Tasks: tasks}
}

func (p *Planner) discoverTargets(ctx context.Context) []string {
	if p.store == nil {
		return nil
	}
	repos, err := p.store.ListRepositories(ctx)
	if err != nil {
		p.debugLog("[planner] list repositories failed: %v", err)
		return nil
	}
	if len(repos) > MaxTargets {
		repos = repos[:MaxTargets]
	}
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return names
}

// keywordGoal is a sub-goal triggered by request keywords.
type keywordGoal struct {
	prefix      string
	keywords    []string
	description string
	criteria    []string
}

var keywordGoals = []keywordGoal{
	{
		prefix:      "frontend_analysis",
		keywords:    []string{"frontend", "ui", "react", "vue", "angular"},
		description: "Analyze frontend architecture and patterns",
		criteria:    []string{"Frontend frameworks identified", "UI patterns analyzed"},
	},
	{
		prefix:      "security_analysis",
		keywords:    []string{"security", "auth", "authentication"},
		description: "Analyze security patterns and authentication",
		criteria:    []string{"Security patterns identified", "Authentication mechanisms analyzed"},
	},
}

func (p *Planner) subGoals(targets []string, request string) []*models.Goal {
	perRepo := make([]string, 0, len(targets))
	for _, repo := range targets {
		perRepo = append(perRepo, fmt.Sprintf("Repository %s analyzed", repo))
	}

	goals := []*models.Goal{
		p.subGoal("individual_analysis", "Analyze individual repositories", perRepo, 3),
		p.subGoal("cross_repo_patterns", "Identify cross-repository patterns",
			[]string{"Architectural patterns mapped", "Common technologies identified"}, 2),
		p.subGoal("org_recommendations", "Generate organizational recommendations",
			[]string{"Team structure analyzed", "Development recommendations provided"}, 1),
	}

	lower := strings.ToLower(request)
	for _, kg := range keywordGoals {
		for _, kw := range kg.keywords {
			if strings.Contains(lower, kw) {
				goals = append(goals, p.subGoal(kg.prefix, kg.description, kg.criteria, 2))
				break
			}
		}
	}
	return goals
}

func (p *Planner) subGoal(prefix, description string, criteria []string, priority int) *models.Goal {
	return &models.Goal{
		ID:              p.newID(prefix),
		Description:     description,
		SuccessCriteria: criteria,
		Priority:        priority,
		Status:          models.GoalStatusActive,
		Context:         map[string]interface{}{},
	}
}

// organizationTasks builds the fan-out/fan-in task graph: one structure
// task per known repository, a cross-repository task over all of them when
// there is more than one, then tech mapping, team recommendations and a
// final validation depending on everything before it.
func (p *Planner) organizationTasks(ctx context.Context, targets []string, request string) []*models.Task {
	var analyze []*models.Task
	for _, repo := range targets {
		inputs := map[string]interface{}{"repo_name": repo}
		if p.store != nil {
			kn, err := p.store.GetRepositoryKnowledge(ctx, repo)
			if err != nil {
				p.debugLog("[planner] skipping %s: %v", repo, err)
				continue
			}
			if kn.Empty() {
				p.debugLog("[planner] skipping %s: not in knowledge store", repo)
				continue
			}
			inputs["repo_data"] = kn
		}
		t := models.NewTask(p.newID("analyze_structure_"+repo), models.TaskTypeAnalyzeStructure,
			fmt.Sprintf("Analyze structure of %s", repo), inputs)
		t.Priority = 3
		t.EstimatedDuration = 300 * time.Second
		analyze = append(analyze, t)
	}

	tasks := append([]*models.Task(nil), analyze...)
	repos := append([]string(nil), targets...)

	var techDeps []string
	if len(analyze) > 1 {
		cross := models.NewTask(p.newID("cross_repo"), models.TaskTypeCrossRepoAnalysis,
			"Analyze patterns across repositories", map[string]interface{}{"repos": repos})
		cross.DependsOn = ids(analyze)
		cross.Priority = 2
		cross.EstimatedDuration = 600 * time.Second
		tasks = append(tasks, cross)
		techDeps = []string{cross.ID}
	}

	tech := models.NewTask(p.newID("tech_mapping"), models.TaskTypeTechStackMapping,
		"Map technology stack across organization", map[string]interface{}{"repos": repos})
	tech.DependsOn = techDeps
	tech.Priority = 2
	tech.EstimatedDuration = 400 * time.Second
	tasks = append(tasks, tech)

	team := models.NewTask(p.newID("team_recommendations"), models.TaskTypeTeamRecommendations,
		"Generate team and development recommendations",
		map[string]interface{}{"repos": repos, "user_request": request})
	team.DependsOn = []string{tech.ID}
	team.Priority = 1
	team.EstimatedDuration = 450 * time.Second
	tasks = append(tasks, team)

	validate := models.NewTask(p.newID("validate_analysis"), models.TaskTypeValidateAnalysis,
		"Validate analysis results for consistency", map[string]interface{}{"repos": repos})
	validate.DependsOn = ids(tasks)
	validate.Priority = 1
	validate.EstimatedDuration = 200 * time.Second
	tasks = append(tasks, validate)

	return tasks
}

// PlanRepository builds the single-repository plan: structure analysis,
// then patterns and a diagram, optional feature suggestions when the
// request asks for them, and a final validation.
func (p *Planner) PlanRepository(repoName string, data models.RepositoryData, request string) *Plan {
	goal := &models.Goal{
		ID:          p.newID("analyze_" + repoName),
		Description: fmt.Sprintf("Complete analysis of repository %s", repoName),
		SuccessCriteria: []string{
			"Repository structure analyzed",
			"Patterns extracted",
			"Architecture diagram generated",
			"Feature recommendations provided",
			"Analysis validated with >75% confidence",
		},
		Priority: 1,
		Status:   models.GoalStatusActive,
		Context: map[string]interface{}{
			"repo_name":    repoName,
			"user_request": request,
		},
	}

	structure := models.NewTask(p.newID("analyze_structure_"+repoName), models.TaskTypeAnalyzeStructure,
		fmt.Sprintf("Analyze structure of %s", repoName),
		map[string]interface{}{"repo_name": repoName, "repo_data": data, "user_request": request})
	structure.Priority = 5
	structure.EstimatedDuration = 300 * time.Second

	patterns := models.NewTask(p.newID("extract_patterns_"+repoName), models.TaskTypeExtractPatterns,
		fmt.Sprintf("Extract patterns from %s", repoName), map[string]interface{}{"repo_data": data})
	patterns.DependsOn = []string{structure.ID}
	patterns.Priority = 4
	patterns.EstimatedDuration = 250 * time.Second

	diagram := models.NewTask(p.newID("generate_diagram_"+repoName), models.TaskTypeGenerateDiagram,
		fmt.Sprintf("Generate diagram for %s", repoName), map[string]interface{}{"repo_data": data})
	diagram.DependsOn = []string{structure.ID}
	diagram.Priority = 3
	diagram.EstimatedDuration = 200 * time.Second

	tasks := []*models.Task{structure, patterns, diagram}

	lower := strings.ToLower(request)
	if strings.Contains(lower, "feature") || strings.Contains(lower, "implement") {
		features := models.NewTask(p.newID("suggest_features_"+repoName), models.TaskTypeSuggestFeatures,
			fmt.Sprintf("Suggest features for %s", repoName),
			map[string]interface{}{"repo_data": data, "request": request})
		features.DependsOn = []string{structure.ID, patterns.ID}
		features.Priority = 2
		features.EstimatedDuration = 300 * time.Second
		tasks = append(tasks, features)
	}

	validate := models.NewTask(p.newID("validate_"+repoName), models.TaskTypeValidateAnalysis,
		fmt.Sprintf("Validate analysis of %s", repoName), map[string]interface{}{"repo_name": repoName})
	validate.DependsOn = ids(tasks)
	validate.Priority = 1
	validate.EstimatedDuration = 150 * time.Second
	tasks = append(tasks, validate)

	for _, t := range tasks {
		goal.AddTasks(t.ID)
	}
	p.recordPlan(goal, tasks, []string{repoName}, request)
	return &Plan{Goal: goal, Tasks: tasks}
}

// correction maps an issue substring to the corrective task it triggers.
type correction struct {
	match       string
	prefix      string
	taskType    models.TaskType
	description string
	priority    int
	estimate    time.Duration
	inputs      func() map[string]interface{}
}

var corrections = []correction{
	{
		match:       "missing components",
		prefix:      "reanalyze_structure",
		taskType:    models.TaskTypeAnalyzeStructure,
		description: "Re-analyze repository structure with focus on components",
		priority:    5,
		estimate:    200 * time.Second,
		inputs: func() map[string]interface{} {
			return map[string]interface{}{"focus": "components", "detailed": true}
		},
	},
	{
		match:       "missing patterns",
		prefix:      "reextract_patterns",
		taskType:    models.TaskTypeExtractPatterns,
		description: "Re-extract architectural patterns",
		priority:    5,
		estimate:    300 * time.Second,
		inputs: func() map[string]interface{} {
			return map[string]interface{}{"deep_analysis": true}
		},
	},
	{
		match:       "cross-repo analysis",
		prefix:      "enhanced_cross_repo",
		taskType:    models.TaskTypeCrossRepoAnalysis,
		description: "Enhanced cross-repository analysis",
		priority:    4,
		estimate:    450 * time.Second,
		inputs: func() map[string]interface{} {
			return map[string]interface{}{"enhanced": true, "focus_areas": []string{"patterns", "technologies"}}
		},
	},
}

// carriedInputs are copied from a failed task of the same type onto its correction.
var carriedInputs = []string{"repo_name", "repo_data", "repos"}

// ReplanForFailures returns one corrective task per issue that matches a
// known category (case-insensitive) and associates it with goal. Issues
// matching no category produce nothing.
func (p *Planner) ReplanForFailures(goal *models.Goal, failed []*models.Task, issues []string) []*models.Task {
	var out []*models.Task
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		var c *correction
		for i := range corrections {
			if strings.Contains(lower, corrections[i].match) {
				c = &corrections[i]
				break
			}
		}
		if c == nil {
			p.debugLog("[planner] no correction for issue %q", issue)
			continue
		}

		inputs := c.inputs()
		for _, f := range failed {
			if f.Type != c.taskType {
				continue
			}
			for _, key := range carriedInputs {
				if v, ok := f.Inputs[key]; ok {
					inputs[key] = v
				}
			}
			break
		}
		if c.taskType == models.TaskTypeCrossRepoAnalysis {
			if _, ok := inputs["repos"]; !ok && goal.Context != nil {
				if targets, ok := goal.Context["targets"]; ok {
					inputs["repos"] = targets
				}
			}
		}

		t := models.NewTask(p.newID(c.prefix), c.taskType, c.description, inputs)
		t.Priority = c.priority
		t.EstimatedDuration = c.estimate
		goal.AddTasks(t.ID)
		out = append(out, t)
	}

	p.mu.Lock()
	p.replans++
	p.mu.Unlock()
	p.debugLog("[planner] replanned %d corrective tasks from %d issues", len(out), len(issues))
	return out
}

func (p *Planner) recordPlan(goal *models.Goal, tasks []*models.Task, repos []string, request string) {
	var total time.Duration
	for _, t := range tasks {
		total += t.EstimatedDuration
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, PlanRecord{
		Timestamp:      time.Now(),
		GoalID:         goal.ID,
		TasksGenerated: len(tasks),
		TotalEstimated: total,
		Repositories:   append([]string(nil), repos...),
		UserRequest:    request,
	})
}

// History returns a copy of the planning history.
func (p *Planner) History() []PlanRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PlanRecord(nil), p.history...)
}

// Metrics summarizes planning history.
func (p *Planner) Metrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := map[string]interface{}{
		"total_plans":   len(p.history),
		"total_replans": p.replans,
	}
	if len(p.history) == 0 {
		return m
	}
	tasks := 0
	var est time.Duration
	for _, rec := range p.history {
		tasks += rec.TasksGenerated
		est += rec.TotalEstimated
	}
	n := float64(len(p.history))
	m["avg_tasks_per_plan"] = float64(tasks) / n
	m["avg_estimated_time_minutes"] = est.Minutes() / n
	m["last_planning"] = p.history[len(p.history)-1].Timestamp
	return m
}

func ids(tasks []*models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
