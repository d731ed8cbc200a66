package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

type fakeStore struct {
	names  []string
	broken map[string]bool
	err    error
}

func (f *fakeStore) ListRepositories(ctx context.Context) ([]models.RepositorySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RepositorySummary, 0, len(f.names))
	for _, n := range f.names {
		out = append(out, models.RepositorySummary{Name: n})
	}
	return out, nil
}

func (f *fakeStore) GetRepositoryKnowledge(ctx context.Context, name string) (*models.RepositoryKnowledge, error) {
	if f.broken[name] {
		return nil, errors.New("disk I/O error")
	}
	for _, n := range f.names {
		if n == name {
			return &models.RepositoryKnowledge{FileStructure: []string{"main.go"}}, nil
		}
	}
	return &models.RepositoryKnowledge{}, nil
}

func (f *fakeStore) GetOrganizationPatterns(ctx context.Context) (*models.OrganizationPatterns, error) {
	return models.NewOrganizationPatterns(), nil
}

// taskShape is the part of a task the plan layout is judged on.
type taskShape struct {
	ID        string
	Type      models.TaskType
	DependsOn []string
	Priority  int
	Estimate  time.Duration
}

func shapes(tasks []*models.Task) []taskShape {
	out := make([]taskShape, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskShape{t.ID, t.Type, t.DependsOn, t.Priority, t.EstimatedDuration})
	}
	return out
}

func newTestPlanner(store *fakeStore) *Planner {
	p := New(store)
	p.SetIDGenerator(func(prefix string) string { return prefix })
	return p
}

func TestDecomposePrimaryGoal_ThreeRepos(t *testing.T) {
	p := newTestPlanner(&fakeStore{names: []string{"a", "b", "c"}})

	plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"a", "b", "c"})

	analyze := []string{"analyze_structure_a", "analyze_structure_b", "analyze_structure_c"}
	want := []taskShape{
		{"analyze_structure_a", models.TaskTypeAnalyzeStructure, nil, 3, 300 * time.Second},
		{"analyze_structure_b", models.TaskTypeAnalyzeStructure, nil, 3, 300 * time.Second},
		{"analyze_structure_c", models.TaskTypeAnalyzeStructure, nil, 3, 300 * time.Second},
		{"cross_repo", models.TaskTypeCrossRepoAnalysis, analyze, 2, 600 * time.Second},
		{"tech_mapping", models.TaskTypeTechStackMapping, []string{"cross_repo"}, 2, 400 * time.Second},
		{"team_recommendations", models.TaskTypeTeamRecommendations, []string{"tech_mapping"}, 1, 450 * time.Second},
		{"validate_analysis", models.TaskTypeValidateAnalysis, append(append([]string{}, analyze...),
			"cross_repo", "tech_mapping", "team_recommendations"), 1, 200 * time.Second},
	}
	if diff := cmp.Diff(want, shapes(plan.Tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(plan.Goal.AssociatedTasks, ids(plan.Tasks)); diff != "" {
		t.Errorf("goal tasks mismatch (-goal +tasks):\n%s", diff)
	}
}

func TestDecomposePrimaryGoal_SingleRepo(t *testing.T) {
	p := newTestPlanner(&fakeStore{names: []string{"solo"}})

	plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"solo"})

	want := []taskShape{
		{"analyze_structure_solo", models.TaskTypeAnalyzeStructure, nil, 3, 300 * time.Second},
		{"tech_mapping", models.TaskTypeTechStackMapping, nil, 2, 400 * time.Second},
		{"team_recommendations", models.TaskTypeTeamRecommendations, []string{"tech_mapping"}, 1, 450 * time.Second},
		{"validate_analysis", models.TaskTypeValidateAnalysis,
			[]string{"analyze_structure_solo", "tech_mapping", "team_recommendations"}, 1, 200 * time.Second},
	}
	if diff := cmp.Diff(want, shapes(plan.Tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestDecomposePrimaryGoal_TaskInputs(t *testing.T) {
	p := newTestPlanner(&fakeStore{names: []string{"a", "b"}})

	plan := p.DecomposePrimaryGoal(context.Background(), "frontend review", []string{"a", "b"})

	byID := make(map[string]*models.Task)
	for _, task := range plan.Tasks {
		byID[task.ID] = task
		assert.Equal(t, models.TaskStatusPending, task.Status)
	}
	assert.Equal(t, "a", byID["analyze_structure_a"].InputString("repo_name"))
	assert.IsType(t, &models.RepositoryKnowledge{}, byID["analyze_structure_a"].Inputs["repo_data"])
	assert.Equal(t, []string{"a", "b"}, byID["cross_repo"].InputStrings("repos"))
	assert.Equal(t, "frontend review", byID["team_recommendations"].InputString("user_request"))
}

func TestDecomposePrimaryGoal_DiscoversTargets(t *testing.T) {
	var names []string
	for i := 0; i < 25; i++ {
		names = append(names, fmt.Sprintf("repo%02d", i))
	}
	p := New(&fakeStore{names: names})

	plan := p.DecomposePrimaryGoal(context.Background(), "", nil)

	analyze := 0
	for _, task := range plan.Tasks {
		if task.Type == models.TaskTypeAnalyzeStructure {
			analyze++
		}
	}
	assert.Equal(t, MaxTargets, analyze)
	assert.Equal(t, "Analyze organization's 20 repositories and provide insights", plan.Goal.Description)
}

func TestDecomposePrimaryGoal_ToleratesStoreFailures(t *testing.T) {
	t.Run("unreadable target is skipped", func(t *testing.T) {
		p := newTestPlanner(&fakeStore{names: []string{"a", "b", "c"}, broken: map[string]bool{"b": true}})

		plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"a", "b", "c"})

		assert.Len(t, plan.Tasks, 6)
		assert.NotContains(t, ids(plan.Tasks), "analyze_structure_b")
	})

	t.Run("unknown target is skipped", func(t *testing.T) {
		p := newTestPlanner(&fakeStore{names: []string{"a"}})

		plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"a", "ghost"})

		assert.Len(t, plan.Tasks, 4)
	})

	t.Run("listing failure plans nothing to analyze", func(t *testing.T) {
		p := newTestPlanner(&fakeStore{err: errors.New("locked")})

		plan := p.DecomposePrimaryGoal(context.Background(), "", nil)

		require.NotNil(t, plan.Goal)
		assert.Len(t, plan.Tasks, 3)
	})

	t.Run("no store plans by name", func(t *testing.T) {
		p := New(nil)
		p.SetIDGenerator(func(prefix string) string { return prefix })

		plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"a", "b"})

		assert.Len(t, plan.Tasks, 6)
		assert.Nil(t, plan.Tasks[0].Inputs["repo_data"])
	})
}

func TestDecomposePrimaryGoal_Goal(t *testing.T) {
	p := New(&fakeStore{names: []string{"a"}})
	before := time.Now()

	plan := p.DecomposePrimaryGoal(context.Background(), "", []string{"a"})

	g := plan.Goal
	assert.Len(t, g.SuccessCriteria, 5)
	assert.Equal(t, models.GoalStatusActive, g.Status)
	require.NotNil(t, g.Deadline)
	assert.WithinDuration(t, before.Add(2*time.Hour), *g.Deadline, 5*time.Second)
	assert.Zero(t, g.CompletionPercentage)
}

func TestSubGoals(t *testing.T) {
	tests := []struct {
		request string
		want    []string
	}{
		{"", []string{"individual_analysis", "cross_repo_patterns", "org_recommendations"}},
		{"Review our React apps", []string{"individual_analysis", "cross_repo_patterns", "org_recommendations", "frontend_analysis"}},
		{"authentication audit", []string{"individual_analysis", "cross_repo_patterns", "org_recommendations", "security_analysis"}},
		{"UI and SECURITY", []string{"individual_analysis", "cross_repo_patterns", "org_recommendations", "frontend_analysis", "security_analysis"}},
	}

	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			p := newTestPlanner(&fakeStore{names: []string{"a"}})
			plan := p.DecomposePrimaryGoal(context.Background(), tt.request, []string{"a"})

			var got []string
			for _, g := range plan.Goal.SubGoals {
				got = append(got, g.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("sub-goals mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanRepository(t *testing.T) {
	data := models.RepositoryData{"main.go": {Type: "go"}}

	t.Run("without feature request", func(t *testing.T) {
		p := newTestPlanner(&fakeStore{})
		plan := p.PlanRepository("svc", data, "explain the architecture")

		want := []taskShape{
			{"analyze_structure_svc", models.TaskTypeAnalyzeStructure, nil, 5, 300 * time.Second},
			{"extract_patterns_svc", models.TaskTypeExtractPatterns, []string{"analyze_structure_svc"}, 4, 250 * time.Second},
			{"generate_diagram_svc", models.TaskTypeGenerateDiagram, []string{"analyze_structure_svc"}, 3, 200 * time.Second},
			{"validate_svc", models.TaskTypeValidateAnalysis,
				[]string{"analyze_structure_svc", "extract_patterns_svc", "generate_diagram_svc"}, 1, 150 * time.Second},
		}
		if diff := cmp.Diff(want, shapes(plan.Tasks)); diff != "" {
			t.Errorf("plan mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, "analyze_svc", plan.Goal.ID)
	})

	t.Run("with feature request", func(t *testing.T) {
		p := newTestPlanner(&fakeStore{})
		plan := p.PlanRepository("svc", data, "How would I IMPLEMENT billing?")

		require.Len(t, plan.Tasks, 5)
		features := plan.Tasks[3]
		assert.Equal(t, models.TaskTypeSuggestFeatures, features.Type)
		assert.Equal(t, []string{"analyze_structure_svc", "extract_patterns_svc"}, features.DependsOn)
		assert.Equal(t, "How would I IMPLEMENT billing?", features.InputString("request"))
		assert.Contains(t, plan.Tasks[4].DependsOn, features.ID)
	})
}

func TestReplanForFailures(t *testing.T) {
	tests := []struct {
		name   string
		issues []string
		want   []models.TaskType
	}{
		{"missing patterns", []string{"missing patterns from repo X"}, []models.TaskType{models.TaskTypeExtractPatterns}},
		{"missing components", []string{"Structure analysis missing components or analysis data"}, []models.TaskType{models.TaskTypeAnalyzeStructure}},
		{"case insensitive", []string{"Cross-repo analysis missing pattern or technology data"}, []models.TaskType{models.TaskTypeCrossRepoAnalysis}},
		{"unmatched", []string{"Task t2 returned error: boom"}, nil},
		{"one task per issue", []string{"missing patterns in a", "nothing to see", "missing patterns in b"},
			[]models.TaskType{models.TaskTypeExtractPatterns, models.TaskTypeExtractPatterns}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			p := New(nil)
			p.SetIDGenerator(func(prefix string) string { n++; return fmt.Sprintf("%s-%d", prefix, n) })
			goal := &models.Goal{ID: "g", AssociatedTasks: []string{"t1"}}

			got := p.ReplanForFailures(goal, nil, tt.issues)

			var types []models.TaskType
			for _, task := range got {
				types = append(types, task.Type)
				assert.Contains(t, goal.AssociatedTasks, task.ID)
				assert.Equal(t, models.TaskStatusPending, task.Status)
			}
			if diff := cmp.Diff(tt.want, types); diff != "" {
				t.Errorf("replanned types mismatch (-want +got):\n%s", diff)
			}
			assert.Len(t, goal.AssociatedTasks, 1+len(tt.want))
		})
	}
}

func TestReplanForFailures_Inputs(t *testing.T) {
	p := New(nil)
	goal := &models.Goal{ID: "g", Context: map[string]interface{}{"targets": []string{"a", "b"}}}
	failed := models.NewTask("s1", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_name": "a"})

	got := p.ReplanForFailures(goal, []*models.Task{failed}, []string{
		"missing components",
		"missing patterns",
		"cross-repo analysis found no valid repositories",
	})
	require.Len(t, got, 3)

	structure, patterns, cross := got[0], got[1], got[2]
	assert.Equal(t, 5, structure.Priority)
	assert.Equal(t, 200*time.Second, structure.EstimatedDuration)
	assert.True(t, structure.InputBool("detailed"))
	assert.Equal(t, "components", structure.InputString("focus"))
	assert.Equal(t, "a", structure.InputString("repo_name"), "inputs carry over from the failed task")

	assert.Equal(t, 5, patterns.Priority)
	assert.Equal(t, 300*time.Second, patterns.EstimatedDuration)
	assert.True(t, patterns.InputBool("deep_analysis"))

	assert.Equal(t, 4, cross.Priority)
	assert.Equal(t, 450*time.Second, cross.EstimatedDuration)
	assert.True(t, cross.InputBool("enhanced"))
	assert.Equal(t, []string{"a", "b"}, cross.InputStrings("repos"))
	assert.Equal(t, []string{"patterns", "technologies"}, cross.InputStrings("focus_areas"))
}

func TestMetrics(t *testing.T) {
	p := New(&fakeStore{names: []string{"a", "b", "c"}})
	assert.Equal(t, 0, p.Metrics()["total_plans"])

	p.DecomposePrimaryGoal(context.Background(), "", []string{"a", "b", "c"})
	p.DecomposePrimaryGoal(context.Background(), "", []string{"a"})
	p.ReplanForFailures(&models.Goal{}, nil, []string{"missing patterns"})

	m := p.Metrics()
	assert.Equal(t, 2, m["total_plans"])
	assert.Equal(t, 1, m["total_replans"])
	assert.InDelta(t, 5.5, m["avg_tasks_per_plan"], 1e-9)
	// (300*3+600+400+450+200 + 300+400+450+200) / 2 seconds = 1950s = 32.5 minutes
	assert.InDelta(t, 32.5, m["avg_estimated_time_minutes"], 1e-9)
	assert.Len(t, p.History(), 2)
}
