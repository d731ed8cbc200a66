package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

var (
	errNoAIClient       = errors.New("no AI client configured")
	errNoKnowledgeStore = errors.New("no knowledge store configured")
)

// placeholderDiagram is returned when no diagram generator is configured.
const placeholderDiagram = "graph TD\nA[Frontend] --> B[Backend]\nB --> C[Database]"

// Fixed confidences reported by the built-in handlers.
const (
	confidenceStructure   = 0.85
	confidencePatterns    = 0.75
	confidenceDiagram     = 0.8
	confidencePlaceholder = 0.6
	confidenceCrossRepo   = 0.8
	confidenceTechStack   = 0.85
	confidenceTeam        = 0.7
	confidenceValidation  = 0.9
	confidenceFeatures    = 0.75
	confidenceDegraded    = 0.1
)

func (e *Executor) installHandlers() {
	e.handlers[models.TaskTypeAnalyzeStructure] = e.analyzeStructure
	e.handlers[models.TaskTypeExtractPatterns] = e.extractPatterns
	e.handlers[models.TaskTypeGenerateDiagram] = e.generateDiagram
	e.handlers[models.TaskTypeCrossRepoAnalysis] = e.crossRepoAnalysis
	e.handlers[models.TaskTypeTechStackMapping] = e.techStackMapping
	e.handlers[models.TaskTypeTeamRecommendations] = e.teamRecommendations
	e.handlers[models.TaskTypeValidateAnalysis] = e.validateAnalysis
	e.handlers[models.TaskTypeSuggestFeatures] = e.suggestFeatures
	e.handlers[models.TaskTypeDependencyAnalysis] = e.dependencyAnalysis
	e.handlers[models.TaskTypeContextEnrichment] = e.contextEnrichment
	e.handlers[models.TaskTypeKnowledgeSynthesis] = e.knowledgeSynthesis
}

func degraded(err error) models.Result {
	return models.ErrorResult(err, confidenceDegraded)
}

// resolveRepoData finds the repository a task operates on: the repo_data
// input, then the run's current repository, then the knowledge store.
func (e *Executor) resolveRepoData(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.RepositoryData, *models.RepositoryKnowledge, error) {
	if data, kn := repoDataValue(task.Inputs["repo_data"]); len(data) > 0 || kn != nil {
		return data, kn, nil
	}
	if ectx != nil {
		if data, kn := repoDataValue(ectx.OrgContext["repo_data"]); len(data) > 0 || kn != nil {
			return data, kn, nil
		}
	}

	name := task.InputString("repo_name")
	if name == "" && ectx != nil {
		name, _ = ectx.OrgContext["current_repo"].(string)
	}
	if name == "" || e.store == nil {
		return nil, nil, nil
	}
	kn, err := e.store.GetRepositoryKnowledge(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("load repository %s: %w", name, err)
	}
	if kn.Empty() {
		return nil, nil, nil
	}
	return kn.FileContents, kn, nil
}

func repoDataValue(v interface{}) (models.RepositoryData, *models.RepositoryKnowledge) {
	switch d := v.(type) {
	case models.RepositoryData:
		return d, nil
	case map[string]models.FileInfo:
		return models.RepositoryData(d), nil
	case *models.RepositoryKnowledge:
		if d == nil {
			return nil, nil
		}
		return d.FileContents, d
	default:
		return nil, nil
	}
}

// repoPaths lists the file paths of a repository, preferring the stored
// file structure when contents were not retained.
func repoPaths(data models.RepositoryData, kn *models.RepositoryKnowledge) []string {
	if len(data) > 0 {
		return data.Paths()
	}
	if kn != nil {
		return kn.FileStructure
	}
	return nil
}

func (e *Executor) analyzeStructure(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	data, kn, err := e.resolveRepoData(ctx, task, ectx)
	if err != nil {
		return degraded(err), nil
	}

	mermaid := e.structureDiagram(ctx, data, kn)

	if e.ai == nil {
		return degraded(errNoAIClient), nil
	}
	analysis, err := e.ai.AnalyzeRepository(ctx, data, mermaid)
	if err != nil {
		return degraded(fmt.Errorf("analyze repository: %w", err)), nil
	}

	res := models.Result{
		"components": valueOr(analysis, "components", []interface{}{}),
		"patterns":   valueOr(analysis, "architecture_patterns", []interface{}{}),
		"tech_stack": valueOr(analysis, "tech_stack", map[string]interface{}{}),
		"analysis":   analysis,
		"confidence": confidenceStructure,
	}
	if focus := task.InputString("focus"); focus != "" {
		res["focus"] = focus
	}
	return res, nil
}

// structureDiagram reuses a stored diagram when one exists and otherwise
// generates one. Diagram failures are not fatal to structure analysis.
func (e *Executor) structureDiagram(ctx context.Context, data models.RepositoryData, kn *models.RepositoryKnowledge) string {
	if kn != nil && strings.TrimSpace(kn.MermaidDiagram) != "" {
		mermaid := strings.TrimSpace(kn.MermaidDiagram)
		if e.diagrams != nil {
			mermaid = e.diagrams.Optimize(mermaid)
		}
		return mermaid
	}
	if e.diagrams == nil || len(data) == 0 {
		return ""
	}
	raw, err := e.diagrams.Generate(ctx, data)
	if err != nil {
		e.debugLog("[executor] diagram generation failed, continuing without diagram: %v", err)
		return ""
	}
	return e.diagrams.Optimize(raw)
}

func (e *Executor) extractPatterns(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	data, kn, err := e.resolveRepoData(ctx, task, ectx)
	if err != nil {
		return degraded(err), nil
	}

	patterns := DetectPatterns(repoPaths(data, kn))
	count := 0
	for _, list := range patterns {
		count += len(list)
	}

	res := models.Result{
		"patterns":      patterns,
		"pattern_count": count,
		"confidence":    confidencePatterns,
	}
	if task.InputBool("deep_analysis") {
		res["deep_analysis"] = true
	}
	return res, nil
}

// DetectPatterns classifies file paths into architectural, design and
// deployment patterns by keyword.
func DetectPatterns(paths []string) map[string][]string {
	patterns := map[string][]string{
		"architectural": {},
		"design":        {},
		"deployment":    {},
	}

	pathHas := func(keywords ...string) bool {
		for _, p := range paths {
			lower := strings.ToLower(p)
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					return true
				}
			}
		}
		return false
	}
	hasFile := func(names ...string) bool {
		for _, p := range paths {
			base := path.Base(p)
			for _, n := range names {
				if base == n {
					return true
				}
			}
		}
		return false
	}

	if pathHas("controller") && pathHas("model") && pathHas("view") {
		patterns["architectural"] = append(patterns["architectural"], "MVC")
	}
	if pathHas("service") {
		patterns["architectural"] = append(patterns["architectural"], "Microservices")
	}

	if pathHas("factory") {
		patterns["design"] = append(patterns["design"], "Factory")
	}
	if pathHas("repository", "/repo/", "_repo.") {
		patterns["design"] = append(patterns["design"], "Repository")
	}
	if pathHas("middleware") {
		patterns["design"] = append(patterns["design"], "Middleware")
	}

	if hasFile("Dockerfile", "docker-compose.yml", "docker-compose.yaml") {
		patterns["deployment"] = append(patterns["deployment"], "Containerized")
	}
	if pathHas(".github/workflows/", ".gitlab-ci") {
		patterns["deployment"] = append(patterns["deployment"], "CI/CD")
	}
	if pathHas("k8s/", "helm/", "kustomization") {
		patterns["deployment"] = append(patterns["deployment"], "Kubernetes")
	}
	return patterns
}

func (e *Executor) generateDiagram(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	if e.diagrams == nil {
		return models.Result{
			"mermaid":      placeholderDiagram,
			"diagram_type": "basic",
			"confidence":   confidencePlaceholder,
		}, nil
	}

	data, _, err := e.resolveRepoData(ctx, task, ectx)
	if err != nil {
		return degraded(err), nil
	}
	raw, err := e.diagrams.Generate(ctx, data)
	if err != nil {
		return degraded(fmt.Errorf("generate diagram: %w", err)), nil
	}
	return models.Result{
		"mermaid":      e.diagrams.Optimize(raw),
		"diagram_type": "architecture",
		"confidence":   confidenceDiagram,
	}, nil
}

// loadKnowledge fetches stored knowledge for each repo, skipping unknown ones.
func (e *Executor) loadKnowledge(ctx context.Context, repos []string) (map[string]*models.RepositoryKnowledge, error) {
	if e.store == nil {
		return nil, errNoKnowledgeStore
	}
	out := make(map[string]*models.RepositoryKnowledge, len(repos))
	for _, repo := range repos {
		kn, err := e.store.GetRepositoryKnowledge(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("load repository %s: %w", repo, err)
		}
		if !kn.Empty() {
			out[repo] = kn
		}
	}
	return out, nil
}

func (e *Executor) crossRepoAnalysis(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	repos := task.InputStrings("repos")
	all, err := e.loadKnowledge(ctx, repos)
	if err != nil {
		return degraded(err), nil
	}

	patternCounts := make(map[string]int)
	for _, kn := range all {
		for _, p := range models.ToStrings(kn.Analysis["architecture_patterns"]) {
			patternCounts[p]++
		}
	}
	threshold := float64(len(all)) * 0.5
	common := make(map[string]int)
	for p, n := range patternCounts {
		if float64(n) > threshold {
			common[p] = n
		}
	}

	res := models.Result{
		"patterns":            common,
		"shared_technologies": countTechStack(all, "languages"),
		"analyzed_repos":      len(all),
		"total_repos":         len(repos),
		"confidence":          confidenceCrossRepo,
	}
	if task.InputBool("enhanced") {
		res["shared_frameworks"] = countTechStack(all, "frameworks")
	}
	return res, nil
}

// countTechStack counts how many repositories list each entry of tech_stack[key].
func countTechStack(all map[string]*models.RepositoryKnowledge, key string) map[string]int {
	counts := make(map[string]int)
	for _, kn := range all {
		stack := models.Result(kn.Analysis).Map("tech_stack")
		for _, item := range models.ToStrings(stack[key]) {
			counts[item]++
		}
	}
	return counts
}

func (e *Executor) techStackMapping(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	repos := task.InputStrings("repos")
	all, err := e.loadKnowledge(ctx, repos)
	if err != nil {
		return degraded(err), nil
	}

	languages := countTechStack(all, "languages")
	mapping := map[string]interface{}{
		"languages":      languages,
		"frameworks":     countTechStack(all, "frameworks"),
		"databases":      countTechStack(all, "databases"),
		"cloud_services": countTechStack(all, "cloud_services"),
		"total_repos":    len(repos),
	}

	var dominant interface{}
	if lang := topKey(languages); lang != "" {
		dominant = lang
	}
	return models.Result{
		"tech_mapping":      mapping,
		"dominant_language": dominant,
		"confidence":        confidenceTechStack,
	}, nil
}

// topKey returns the key with the highest count, breaking ties lexically.
func topKey(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

func (e *Executor) teamRecommendations(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	repos := task.InputStrings("repos")
	all, err := e.loadKnowledge(ctx, repos)
	if err != nil {
		return degraded(err), nil
	}

	totalFiles := 0
	for _, kn := range all {
		totalFiles += len(kn.FileStructure)
	}
	avg := 0.0
	if len(repos) > 0 {
		avg = float64(totalFiles) / float64(len(repos))
	}

	recs := map[string][]string{
		"team_structure":            {},
		"development_practices":     {},
		"technical_debt":            {},
		"improvement_opportunities": {},
	}
	if avg > 100 {
		recs["team_structure"] = append(recs["team_structure"], "Consider dedicated teams per repository")
		recs["development_practices"] = append(recs["development_practices"], "Implement code review processes")
	}
	if avg < 20 {
		recs["team_structure"] = append(recs["team_structure"], "Small teams can handle multiple repositories")
	}
	if strings.Contains(strings.ToLower(task.InputString("user_request")), "frontend") {
		recs["improvement_opportunities"] = append(recs["improvement_opportunities"], "Focus on UI/UX consistency across repos")
	}

	return models.Result{
		"recommendations":     recs,
		"avg_repo_complexity": avg,
		"confidence":          confidenceTeam,
	}, nil
}

func (e *Executor) validateAnalysis(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	res := models.Result{
		"validation_passed": true,
		"quality_score":     0.85,
		"confidence":        confidenceValidation,
	}
	if repos := task.InputStrings("repos"); len(repos) > 0 {
		res["validated_repos"] = len(repos)
	}
	return res, nil
}

// defaultSuggestions are offered for every feature request.
var defaultSuggestions = []string{
	"Implement authentication module",
	"Add comprehensive logging",
	"Set up CI/CD pipeline",
	"Add API documentation",
}

func (e *Executor) suggestFeatures(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	request := task.InputString("request")
	res := models.Result{
		"suggestions":     append([]string(nil), defaultSuggestions...),
		"feature_request": request,
		"confidence":      confidenceFeatures,
	}

	if e.ai != nil && request != "" {
		prompt := fmt.Sprintf("Suggest where and how to implement the following feature in this repository. Reply with a short list.\n\nFeature: %s", request)
		if text, err := e.ai.GenerateResponse(ctx, prompt); err != nil {
			e.debugLog("[executor] feature guidance unavailable: %v", err)
		} else {
			res["guidance"] = text
		}
	}
	return res, nil
}

// manifests maps dependency manifest file names to their package manager.
var manifests = map[string]string{
	"go.mod":           "go modules",
	"package.json":     "npm",
	"requirements.txt": "pip",
	"pyproject.toml":   "pip",
	"Pipfile":          "pipenv",
	"pom.xml":          "maven",
	"build.gradle":     "gradle",
	"Cargo.toml":       "cargo",
	"Gemfile":          "bundler",
	"composer.json":    "composer",
}

func (e *Executor) dependencyAnalysis(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	data, kn, err := e.resolveRepoData(ctx, task, ectx)
	if err != nil {
		return degraded(err), nil
	}

	found := []string{}
	managers := []string{}
	seen := make(map[string]bool)
	for _, p := range repoPaths(data, kn) {
		mgr, ok := manifests[path.Base(p)]
		if !ok {
			continue
		}
		found = append(found, p)
		if !seen[mgr] {
			seen[mgr] = true
			managers = append(managers, mgr)
		}
	}

	confidence := 0.8
	if len(found) == 0 {
		confidence = 0.5
	}
	return models.Result{
		"manifests":           found,
		"dependency_managers": managers,
		"confidence":          confidence,
	}, nil
}

func (e *Executor) contextEnrichment(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	if e.store == nil {
		return degraded(errNoKnowledgeStore), nil
	}
	patterns, err := e.store.GetOrganizationPatterns(ctx)
	if err != nil {
		return degraded(fmt.Errorf("organization patterns: %w", err)), nil
	}
	repos, err := e.store.ListRepositories(ctx)
	if err != nil {
		return degraded(fmt.Errorf("list repositories: %w", err)), nil
	}
	return models.Result{
		"org_patterns": patterns,
		"repos_in_kb":  len(repos),
		"confidence":   0.8,
	}, nil
}

func (e *Executor) knowledgeSynthesis(ctx context.Context, task *models.Task, ectx *models.ExecutionContext) (models.Result, error) {
	if e.ai == nil {
		return degraded(errNoAIClient), nil
	}
	var b strings.Builder
	b.WriteString("Summarize the shared architecture and conventions of these repositories.\n")
	for _, repo := range task.InputStrings("repos") {
		fmt.Fprintf(&b, "- %s\n", repo)
	}
	if req := task.InputString("user_request"); req != "" {
		fmt.Fprintf(&b, "\nFocus on: %s\n", req)
	}

	text, err := e.ai.GenerateResponse(ctx, b.String())
	if err != nil {
		return degraded(fmt.Errorf("generate synthesis: %w", err)), nil
	}
	return models.Result{
		"synthesis":  text,
		"confidence": 0.7,
	}, nil
}

func valueOr(m map[string]interface{}, key string, def interface{}) interface{} {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return def
}
