package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jayasaisrikar/spoc-agent/internal/tools"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAI struct {
	mu       sync.Mutex
	err      error
	analysis map[string]interface{}
	diagrams []string
}

func (f *fakeAI) AnalyzeRepository(ctx context.Context, data models.RepositoryData, diagram string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diagrams = append(f.diagrams, diagram)
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis != nil {
		return f.analysis, nil
	}
	return map[string]interface{}{
		"components":            []interface{}{"api", "worker"},
		"architecture_patterns": []interface{}{"Layered"},
		"tech_stack":            map[string]interface{}{"languages": []interface{}{"go"}},
	}, nil
}

func (f *fakeAI) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "response: " + prompt, nil
}

type fakeStore struct {
	err   error
	repos map[string]*models.RepositoryKnowledge
}

func (f *fakeStore) ListRepositories(ctx context.Context) ([]models.RepositorySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RepositorySummary, 0, len(f.repos))
	for name := range f.repos {
		out = append(out, models.RepositorySummary{Name: name})
	}
	return out, nil
}

func (f *fakeStore) GetRepositoryKnowledge(ctx context.Context, name string) (*models.RepositoryKnowledge, error) {
	if f.err != nil {
		return nil, f.err
	}
	if kn, ok := f.repos[name]; ok {
		return kn, nil
	}
	return &models.RepositoryKnowledge{}, nil
}

func (f *fakeStore) GetOrganizationPatterns(ctx context.Context) (*models.OrganizationPatterns, error) {
	if f.err != nil {
		return nil, f.err
	}
	return models.NewOrganizationPatterns(), nil
}

type fakeDiagrams struct {
	err       error
	generated int
}

func (f *fakeDiagrams) Generate(ctx context.Context, data models.RepositoryData) (string, error) {
	f.generated++
	if f.err != nil {
		return "", f.err
	}
	return "graph TD\n\n  A --> B\n", nil
}

func (f *fakeDiagrams) Optimize(mermaid string) string {
	return strings.Join(strings.Fields(mermaid), " ")
}

func knowledge(files int, languages []string, patterns ...string) *models.RepositoryKnowledge {
	structure := make([]string, files)
	for i := range structure {
		structure[i] = "f.go"
	}
	langs := make([]interface{}, len(languages))
	for i, l := range languages {
		langs[i] = l
	}
	pats := make([]interface{}, len(patterns))
	for i, p := range patterns {
		pats[i] = p
	}
	return &models.RepositoryKnowledge{
		FileStructure: structure,
		Analysis: map[string]interface{}{
			"architecture_patterns": pats,
			"tech_stack":            map[string]interface{}{"languages": langs},
		},
	}
}

func sampleRepo() models.RepositoryData {
	return models.RepositoryData{
		"app/controllers/user.go": {Type: "go"},
		"app/models/user.go":      {Type: "go"},
		"app/views/user.html":     {Type: "html"},
		"Dockerfile":              {Type: "unknown"},
	}
}

func TestExecuteBatch_HandlerErrorFailsTask(t *testing.T) {
	reg := tools.NewDefaultRegistry()
	e := New(Config{Registry: reg})
	e.SetHandler(models.TaskTypeAnalyzeStructure, func(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
		return nil, errors.New("connection refused")
	})

	task := models.NewTask("t1", models.TaskTypeAnalyzeStructure, "analyze", nil)
	results := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.Len(t, task.ErrorHistory, 1)
	assert.Contains(t, task.ErrorHistory[0], "connection refused")
	assert.Equal(t, []string{"structure_analyzer"}, task.ToolsUsed)
	assert.NotNil(t, task.CompletedAt)

	tool, _ := reg.Get("structure_analyzer")
	assert.Equal(t, 1, tool.UsageCount)
	assert.InDelta(t, 0.72, tool.SuccessRate, 1e-9, "failure must be reported to the registry")

	res := results["t1"]
	msg, ok := res.Error()
	assert.True(t, ok)
	assert.Contains(t, msg, "connection refused")
	assert.Equal(t, models.TaskTypeAnalyzeStructure, res.TaskType())
}

func TestExecuteBatch_UnknownTaskType(t *testing.T) {
	e := New(Config{})
	task := models.NewTask("t1", models.TaskTypePlanValidation, "validate plan", nil)

	results := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.Len(t, task.ErrorHistory, 1)
	assert.Contains(t, task.ErrorHistory[0], ErrUnknownTaskType.Error())
	_, hasErr := results["t1"].Error()
	assert.True(t, hasErr)
}

func TestExecuteBatch_RecoversHandlerPanic(t *testing.T) {
	e := New(Config{})
	e.SetHandler(models.TaskTypeValidateAnalysis, func(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
		panic("boom")
	})
	ok := models.NewTask("ok", models.TaskTypeExtractPatterns, "patterns", map[string]interface{}{"repo_data": sampleRepo()})
	bad := models.NewTask("bad", models.TaskTypeValidateAnalysis, "validate", nil)

	results := e.ExecuteBatch(context.Background(), []*models.Task{bad, ok}, nil)

	assert.Equal(t, models.TaskStatusFailed, bad.Status)
	assert.Contains(t, bad.ErrorHistory[0], "boom")
	assert.Equal(t, models.TaskStatusCompleted, ok.Status, "a failing task must not abort the batch")
	assert.Len(t, results, 2)
}

func TestExecuteBatch_TaskTimeout(t *testing.T) {
	e := New(Config{TaskTimeout: 20 * time.Millisecond})
	e.SetHandler(models.TaskTypeValidateAnalysis, func(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
		<-ctx.Done()
		return models.Result{"confidence": 0.9}, nil
	})
	task := models.NewTask("slow", models.TaskTypeValidateAnalysis, "validate", nil)

	e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Contains(t, task.ErrorHistory[0], "timed out")
}

func TestExecuteBatch_SkipsTasksThatCannotStart(t *testing.T) {
	e := New(Config{})
	task := models.NewTask("done", models.TaskTypeValidateAnalysis, "validate", nil)
	task.Status = models.TaskStatusCompleted

	results := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	_, hasErr := results["done"].Error()
	assert.True(t, hasErr)
	assert.Empty(t, e.History())
}

func TestExecuteBatch_RetryingTaskRuns(t *testing.T) {
	e := New(Config{})
	task := models.NewTask("again", models.TaskTypeValidateAnalysis, "validate", nil)
	task.Status = models.TaskStatusRetrying
	task.RetryCount = 1

	e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.InDelta(t, 0.9, task.Confidence, 1e-9)
}

func TestExecuteBatch_CollaboratorFailuresDegrade(t *testing.T) {
	down := errors.New("service unavailable")
	e := New(Config{
		AI:       &fakeAI{err: down},
		Store:    &fakeStore{err: down},
		Diagrams: &fakeDiagrams{err: down},
	})

	repos := []interface{}{"a", "b"}
	tasks := []*models.Task{
		models.NewTask("structure", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_data": sampleRepo()}),
		models.NewTask("structure-by-name", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_name": "a"}),
		models.NewTask("patterns-by-name", models.TaskTypeExtractPatterns, "", map[string]interface{}{"repo_name": "a"}),
		models.NewTask("diagram", models.TaskTypeGenerateDiagram, "", map[string]interface{}{"repo_data": sampleRepo()}),
		models.NewTask("cross", models.TaskTypeCrossRepoAnalysis, "", map[string]interface{}{"repos": repos}),
		models.NewTask("tech", models.TaskTypeTechStackMapping, "", map[string]interface{}{"repos": repos}),
		models.NewTask("team", models.TaskTypeTeamRecommendations, "", map[string]interface{}{"repos": repos}),
		models.NewTask("deps", models.TaskTypeDependencyAnalysis, "", map[string]interface{}{"repo_name": "a"}),
		models.NewTask("enrich", models.TaskTypeContextEnrichment, "", nil),
		models.NewTask("synth", models.TaskTypeKnowledgeSynthesis, "", map[string]interface{}{"repos": repos}),
	}

	var results map[string]models.Result
	require.NotPanics(t, func() {
		results = e.ExecuteBatch(context.Background(), tasks, nil)
	})

	for _, task := range tasks {
		t.Run(task.ID, func(t *testing.T) {
			res := results[task.ID]
			msg, ok := res.Error()
			require.True(t, ok, "expected an error envelope, got %v", res)
			assert.Contains(t, msg, "service unavailable")
			assert.LessOrEqual(t, res.ConfidenceOr(1), 0.1)
			assert.Equal(t, task.Type, res.TaskType())
			assert.Equal(t, models.TaskStatusCompleted, task.Status, "absorbed failures complete with a degraded result")
		})
	}
}

func TestExecuteBatch_MissingCollaboratorsDegrade(t *testing.T) {
	e := New(Config{})
	tasks := []*models.Task{
		models.NewTask("structure", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_data": sampleRepo()}),
		models.NewTask("cross", models.TaskTypeCrossRepoAnalysis, "", map[string]interface{}{"repos": []string{"a"}}),
	}

	results := e.ExecuteBatch(context.Background(), tasks, nil)

	for id, res := range results {
		_, ok := res.Error()
		assert.True(t, ok, "%s should be degraded", id)
		assert.LessOrEqual(t, res.ConfidenceOr(1), 0.1)
	}
}

func TestExecuteBatch_StampsTaskType(t *testing.T) {
	e := New(Config{AI: &fakeAI{}, Store: &fakeStore{}, Diagrams: &fakeDiagrams{}})

	var tasks []*models.Task
	for _, tt := range models.AllTaskTypes {
		tasks = append(tasks, models.NewTask(string(tt), tt, "", map[string]interface{}{"repo_data": sampleRepo()}))
	}
	results := e.ExecuteBatch(context.Background(), tasks, nil)

	require.Len(t, results, len(models.AllTaskTypes))
	for _, tt := range models.AllTaskTypes {
		assert.Equal(t, tt, results[string(tt)].TaskType())
	}
}

func TestExecuteBatch_Parallel(t *testing.T) {
	reg := tools.NewDefaultRegistry()
	e := New(Config{Registry: reg, MaxParallel: 3})

	var tasks []*models.Task
	for _, id := range []string{"v1", "v2", "v3", "v4", "v5", "v6"} {
		tasks = append(tasks, models.NewTask(id, models.TaskTypeValidateAnalysis, "validate", nil))
	}

	results := e.ExecuteBatch(context.Background(), tasks, nil)

	assert.Len(t, results, 6)
	for _, task := range tasks {
		assert.Equal(t, models.TaskStatusCompleted, task.Status)
	}
	tool, _ := reg.Get("validator")
	assert.Equal(t, 6, tool.UsageCount)
	assert.Len(t, e.History(), 6)
}

func TestStructureAnalysis(t *testing.T) {
	ai := &fakeAI{}
	diagrams := &fakeDiagrams{}
	e := New(Config{AI: ai, Diagrams: diagrams})

	task := models.NewTask("s", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_data": sampleRepo()})
	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["s"]

	assert.Equal(t, 0.85, res.ConfidenceOr(0))
	assert.Equal(t, []interface{}{"api", "worker"}, res["components"])
	assert.Equal(t, []interface{}{"Layered"}, res["patterns"])
	assert.NotNil(t, res.Map("tech_stack"))
	assert.Equal(t, 1, diagrams.generated)
	assert.Equal(t, []string{"graph TD A --> B"}, ai.diagrams)
}

func TestStructureAnalysis_ReusesStoredDiagram(t *testing.T) {
	ai := &fakeAI{}
	diagrams := &fakeDiagrams{}
	store := &fakeStore{repos: map[string]*models.RepositoryKnowledge{
		"svc": {
			FileStructure:  []string{"main.go"},
			FileContents:   models.RepositoryData{"main.go": {Type: "go"}},
			MermaidDiagram: "  graph LR\n  X --> Y  ",
		},
	}}
	e := New(Config{AI: ai, Store: store, Diagrams: diagrams})

	task := models.NewTask("s", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_name": "svc"})
	e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)

	assert.Zero(t, diagrams.generated)
	assert.Equal(t, []string{"graph LR X --> Y"}, ai.diagrams)
}

func TestStructureAnalysis_DiagramFailureIsNotFatal(t *testing.T) {
	ai := &fakeAI{}
	e := New(Config{AI: ai, Diagrams: &fakeDiagrams{err: errors.New("render failed")}})

	task := models.NewTask("s", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"repo_data": sampleRepo()})
	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["s"]

	_, hasErr := res.Error()
	assert.False(t, hasErr)
	assert.Equal(t, []string{""}, ai.diagrams)
}

func TestStructureAnalysis_UsesRunRepository(t *testing.T) {
	ai := &fakeAI{}
	e := New(Config{AI: ai})
	ectx := models.NewExecutionContext("run", nil, models.ResourceConstraints{})
	ectx.OrgContext["repo_data"] = sampleRepo()

	task := models.NewTask("replanned", models.TaskTypeAnalyzeStructure, "", map[string]interface{}{"focus": "components", "detailed": true})
	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, ectx)["replanned"]

	assert.Equal(t, "components", res["focus"])
	assert.Equal(t, 0.85, res.ConfidenceOr(0))
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		category string
		want     []string
	}{
		{"mvc", []string{"controllers/a.go", "models/a.go", "views/a.html"}, "architectural", []string{"MVC"}},
		{"mvc incomplete", []string{"controllers/a.go", "models/a.go"}, "architectural", []string{}},
		{"services", []string{"user_service.py"}, "architectural", []string{"Microservices"}},
		{"docker", []string{"Dockerfile"}, "deployment", []string{"Containerized"}},
		{"nested compose", []string{"deploy/docker-compose.yml"}, "deployment", []string{"Containerized"}},
		{"ci", []string{".github/workflows/ci.yml"}, "deployment", []string{"CI/CD"}},
		{"factory", []string{"pkg/widget_factory.go"}, "design", []string{"Factory"}},
		{"nothing", []string{"README.md"}, "architectural", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPatterns(tt.paths)
			assert.Equal(t, tt.want, got[tt.category])
		})
	}
}

func TestExtractPatterns(t *testing.T) {
	e := New(Config{})
	task := models.NewTask("p", models.TaskTypeExtractPatterns, "", map[string]interface{}{"repo_data": sampleRepo(), "deep_analysis": true})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["p"]

	patterns := models.ToStringLists(res["patterns"])
	assert.Equal(t, []string{"MVC"}, patterns["architectural"])
	assert.Equal(t, []string{"Containerized"}, patterns["deployment"])
	assert.Equal(t, 2, res["pattern_count"])
	assert.Equal(t, 0.75, res.ConfidenceOr(0))
	assert.Equal(t, true, res["deep_analysis"])
}

func TestGenerateDiagram(t *testing.T) {
	t.Run("placeholder without generator", func(t *testing.T) {
		e := New(Config{})
		task := models.NewTask("d", models.TaskTypeGenerateDiagram, "", nil)
		res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["d"]

		assert.Equal(t, placeholderDiagram, res["mermaid"])
		assert.Equal(t, "basic", res["diagram_type"])
		assert.Equal(t, 0.6, res.ConfidenceOr(0))
	})

	t.Run("generated", func(t *testing.T) {
		e := New(Config{Diagrams: &fakeDiagrams{}})
		task := models.NewTask("d", models.TaskTypeGenerateDiagram, "", map[string]interface{}{"repo_data": sampleRepo()})
		res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["d"]

		assert.Equal(t, "graph TD A --> B", res["mermaid"])
		assert.Equal(t, "architecture", res["diagram_type"])
		assert.Equal(t, 0.8, res.ConfidenceOr(0))
	})
}

func orgStore() *fakeStore {
	return &fakeStore{repos: map[string]*models.RepositoryKnowledge{
		"web":    knowledge(150, []string{"typescript", "go"}, "Layered", "MVC"),
		"api":    knowledge(120, []string{"go"}, "Layered"),
		"worker": knowledge(90, []string{"go", "python"}, "Pipeline"),
	}}
}

func TestCrossRepoAnalysis(t *testing.T) {
	e := New(Config{Store: orgStore()})
	task := models.NewTask("x", models.TaskTypeCrossRepoAnalysis, "", map[string]interface{}{
		"repos": []string{"web", "api", "worker", "missing"},
	})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["x"]

	assert.Equal(t, map[string]int{"Layered": 2}, res["patterns"])
	assert.Equal(t, map[string]int{"go": 3, "typescript": 1, "python": 1}, res["shared_technologies"])
	assert.Equal(t, 3, res["analyzed_repos"])
	assert.Equal(t, 4, res["total_repos"])
	assert.Equal(t, 0.8, res.ConfidenceOr(0))
}

func TestCrossRepoAnalysis_HalfIsNotCommon(t *testing.T) {
	e := New(Config{Store: &fakeStore{repos: map[string]*models.RepositoryKnowledge{
		"web": knowledge(150, []string{"go"}, "MVC"),
		"api": knowledge(120, []string{"go"}, "Pipeline", "Layered"),
		"cli": knowledge(60, []string{"go"}, "Layered"),
		"db":  knowledge(30, []string{"go"}, "MVC"),
	}}})

	tests := []struct {
		name  string
		repos []string
		want  map[string]int
	}{
		{"one of two", []string{"web", "api"}, map[string]int{}},
		{"two of four", []string{"web", "api", "cli", "db"}, map[string]int{}},
		{"two of three", []string{"web", "api", "cli"}, map[string]int{"Layered": 2}},
		{"unknown repos are not counted", []string{"api", "cli", "missing"}, map[string]int{"Layered": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := models.NewTask("x", models.TaskTypeCrossRepoAnalysis, "", map[string]interface{}{"repos": tt.repos})
			res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["x"]
			assert.Equal(t, tt.want, res["patterns"])
		})
	}
}

func TestTechStackMapping(t *testing.T) {
	e := New(Config{Store: orgStore()})
	task := models.NewTask("tech", models.TaskTypeTechStackMapping, "", map[string]interface{}{
		"repos": []string{"web", "api", "worker"},
	})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["tech"]

	mapping := res.Map("tech_mapping")
	require.NotNil(t, mapping)
	assert.Equal(t, map[string]int{"go": 3, "typescript": 1, "python": 1}, mapping["languages"])
	assert.Equal(t, 3, mapping["total_repos"])
	assert.Equal(t, "go", res["dominant_language"])
	assert.Equal(t, 0.85, res.ConfidenceOr(0))
}

func TestTechStackMapping_NoLanguages(t *testing.T) {
	e := New(Config{Store: &fakeStore{}})
	task := models.NewTask("tech", models.TaskTypeTechStackMapping, "", map[string]interface{}{"repos": []string{"a"}})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["tech"]

	assert.Nil(t, res["dominant_language"])
}

func TestTeamRecommendations(t *testing.T) {
	tests := []struct {
		name     string
		repos    []string
		request  string
		wantTeam []string
		wantImpr []string
		wantAvg  float64
	}{
		{
			name:     "large repositories",
			repos:    []string{"web", "api"},
			wantTeam: []string{"Consider dedicated teams per repository"},
			wantImpr: []string{},
			wantAvg:  135,
		},
		{
			name:     "unknown repositories are small",
			repos:    []string{"ghost"},
			request:  "Improve our FRONTEND",
			wantTeam: []string{"Small teams can handle multiple repositories"},
			wantImpr: []string{"Focus on UI/UX consistency across repos"},
			wantAvg:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Config{Store: orgStore()})
			task := models.NewTask("team", models.TaskTypeTeamRecommendations, "", map[string]interface{}{
				"repos":        tt.repos,
				"user_request": tt.request,
			})

			res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["team"]

			recs := models.ToStringLists(res["recommendations"])
			assert.Equal(t, tt.wantTeam, recs["team_structure"])
			assert.Equal(t, tt.wantImpr, recs["improvement_opportunities"])
			assert.InDelta(t, tt.wantAvg, res["avg_repo_complexity"], 1e-9)
			assert.Equal(t, 0.7, res.ConfidenceOr(0))
		})
	}
}

func TestSuggestFeatures(t *testing.T) {
	e := New(Config{AI: &fakeAI{}})
	task := models.NewTask("f", models.TaskTypeSuggestFeatures, "", map[string]interface{}{"request": "add billing"})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["f"]

	assert.Len(t, res.Strings("suggestions"), 4)
	assert.Equal(t, "add billing", res["feature_request"])
	assert.Contains(t, res["guidance"], "add billing")
	assert.Equal(t, 0.75, res.ConfidenceOr(0))
}

func TestDependencyAnalysis(t *testing.T) {
	e := New(Config{})
	data := models.RepositoryData{
		"go.mod":           {Type: "mod"},
		"web/package.json": {Type: "json"},
		"tools/go.mod":     {Type: "mod"},
		"README.md":        {Type: "md"},
	}
	task := models.NewTask("deps", models.TaskTypeDependencyAnalysis, "", map[string]interface{}{"repo_data": data})

	res := e.ExecuteBatch(context.Background(), []*models.Task{task}, nil)["deps"]

	assert.Equal(t, []string{"go.mod", "tools/go.mod", "web/package.json"}, res["manifests"])
	assert.Equal(t, []string{"go modules", "npm"}, res["dependency_managers"])
}

func TestMetrics(t *testing.T) {
	e := New(Config{})
	e.SetHandler(models.TaskTypeGenerateDiagram, func(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
		return nil, errors.New("nope")
	})
	tasks := []*models.Task{
		models.NewTask("a", models.TaskTypeValidateAnalysis, "", nil),
		models.NewTask("b", models.TaskTypeGenerateDiagram, "", nil),
	}

	e.ExecuteBatch(context.Background(), tasks, nil)
	m := e.Metrics()

	assert.Equal(t, 2, m["total_executions"])
	assert.InDelta(t, 0.5, m["success_rate"], 1e-9)
	assert.Contains(t, m["tool_performance"], "validator")
}
