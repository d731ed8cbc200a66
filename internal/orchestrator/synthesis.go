package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/internal/validation"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// topN is how many entries per category the summaries keep.
const topN = 3

// enrichOrgContext gathers what the knowledge store knows about the
// organization before an organization run. Store failures leave the
// affected fields empty.
func (o *Orchestrator) enrichOrgContext(ctx context.Context, targets []string) map[string]interface{} {
	orgCtx := map[string]interface{}{
		"total_repos":    len(targets),
		"analyzed_repos": []string{},
		"technologies":   map[string]interface{}{},
		"user_history":   map[string]interface{}{},
	}
	if o.store == nil {
		return orgCtx
	}

	if patterns, err := o.store.GetOrganizationPatterns(ctx); err != nil {
		debugLog("[orchestrator] organization patterns unavailable: %v", err)
	} else if patterns != nil {
		orgCtx["patterns"] = patterns
	}

	inKB := 0
	if repos, err := o.store.ListRepositories(ctx); err != nil {
		debugLog("[orchestrator] repository list unavailable: %v", err)
	} else {
		inKB = len(repos)
	}

	totalFiles, valid := 0, 0
	langCounts := make(map[string]int)
	for _, repo := range targets {
		kn, err := o.store.GetRepositoryKnowledge(ctx, repo)
		if err != nil || kn.Empty() {
			continue
		}
		valid++
		totalFiles += len(kn.FileStructure)
		stack := models.Result(kn.Analysis).Map("tech_stack")
		for _, lang := range models.ToStrings(stack["languages"]) {
			langCounts[lang]++
		}
	}
	avg := 0.0
	if valid > 0 {
		avg = float64(totalFiles) / float64(valid)
	}

	orgCtx["organizational_metrics"] = map[string]interface{}{
		"repos_in_knowledge_base": inKB,
		"avg_repo_complexity":     avg,
		"dominant_languages":      topKeys(langCounts, topN),
	}
	return orgCtx
}

// synthesizeOrganization aggregates patterns, technologies and
// recommendations from every task result into the organization report.
func synthesizeOrganization(results map[string]models.Result, orgCtx map[string]interface{}) map[string]interface{} {
	patterns := make(map[string]map[string]int)
	technologies := make(map[string]map[string]int)
	var recs []string
	teamInsights := make(map[string]interface{})

	for _, id := range sortedResultIDs(results) {
		res := results[id]

		if lists := models.ToStringLists(res["patterns"]); len(lists) > 0 {
			for category, list := range lists {
				for _, p := range list {
					bump(patterns, category, p, 1)
				}
			}
		}

		for techType, v := range res.Map("tech_mapping") {
			counts, ok := v.(map[string]int)
			if !ok {
				if m, isMap := v.(map[string]interface{}); isMap {
					counts, ok = models.ToCounts(m), true
				}
			}
			if !ok {
				continue
			}
			for tech, n := range counts {
				bump(technologies, techType, tech, n)
			}
		}

		if res.TaskType() == models.TaskTypeTeamRecommendations {
			if avg, ok := models.ToFloat(res["avg_repo_complexity"]); ok {
				teamInsights["avg_repo_complexity"] = avg
			}
			for category, list := range models.ToStringLists(res["recommendations"]) {
				if len(list) > 0 {
					teamInsights[category] = list
				}
			}
		}
		recs = append(recs, flattenRecommendations(res["recommendations"])...)
	}

	meta := metadataOf(results)
	finalConf := 0.5
	if c, ok := models.ToFloat(meta["final_confidence"]); ok {
		finalConf = c
	}
	totalRepos := 0
	if n, ok := models.ToFloat(orgCtx["total_repos"]); ok {
		totalRepos = int(n)
	}

	return map[string]interface{}{
		"success":       true,
		"analysis_type": AnalysisTypeOrganization,
		"summary": map[string]interface{}{
			"total_repos_analyzed": totalRepos,
			"dominant_patterns":    topItems(patterns),
			"primary_technologies": topItems(technologies),
			"analysis_confidence":  finalConf,
			"completion_time":      meta["duration"],
		},
		"recommendations": map[string]interface{}{
			"immediate_actions":   window(recs, 0, 5),
			"long_term_goals":     window(recs, 5, 10),
			"all_recommendations": nonNil(recs),
		},
		"patterns":           patterns,
		"tech_stack":         technologies,
		"team_insights":      teamInsights,
		"execution_metadata": meta,
	}
}

// synthesizeRepository merges the single-repository task results into one
// report with a short architecture summary.
func synthesizeRepository(results map[string]models.Result, repoName string) map[string]interface{} {
	components := make(map[string]interface{})
	var patterns []string
	techStack := make(map[string]interface{})
	var recs []string
	mermaid := ""

	for _, id := range sortedResultIDs(results) {
		res := results[id]

		mergeComponents(components, res["components"])

		switch p := res["patterns"].(type) {
		case []string, []interface{}:
			patterns = append(patterns, models.ToStrings(p)...)
		case nil:
		default:
			patterns = append(patterns, describeMapping(p)...)
		}

		for k, v := range res.Map("tech_stack") {
			techStack[k] = v
		}
		recs = append(recs, res.Strings("suggestions")...)
		if m, ok := res["mermaid"].(string); ok {
			mermaid = m
		}
	}

	techKeys := make([]string, 0, len(techStack))
	for k := range techStack {
		techKeys = append(techKeys, k)
	}
	sort.Strings(techKeys)

	summary := fmt.Sprintf("Repository: %s\nComponents: %d identified\nPatterns: %s\nTechnologies: %s",
		repoName, len(components),
		strings.Join(window(patterns, 0, topN), ", "),
		strings.Join(window(techKeys, 0, topN), ", "))

	return map[string]interface{}{
		"success":              true,
		"analysis_type":        AnalysisTypeRepository,
		"repository":           repoName,
		"components":           components,
		"patterns":             nonNil(patterns),
		"tech_stack":           techStack,
		"recommendations":      nonNil(recs),
		"architecture_summary": summary,
		"mermaid_diagram":      mermaid,
		"execution_metadata":   metadataOf(results),
	}
}

// mergeComponents accepts a component mapping, or a list of names or of
// objects carrying a "name".
func mergeComponents(dst map[string]interface{}, v interface{}) {
	switch c := v.(type) {
	case map[string]interface{}:
		for k, item := range c {
			dst[k] = item
		}
	case []interface{}:
		for _, item := range c {
			switch e := item.(type) {
			case string:
				dst[e] = true
			case map[string]interface{}:
				if name, ok := e["name"].(string); ok && name != "" {
					dst[name] = e
				}
			}
		}
	case []string:
		for _, name := range c {
			dst[name] = true
		}
	}
}

// describeMapping renders a pattern mapping as "key: value" lines in key order.
func describeMapping(v interface{}) []string {
	var out []string
	if lists := models.ToStringLists(v); len(lists) > 0 {
		for _, k := range sortedKeys(lists) {
			out = append(out, fmt.Sprintf("%s: %s", k, strings.Join(lists[k], ", ")))
		}
		return out
	}
	if counts := models.ToCounts(v); len(counts) > 0 {
		for _, k := range sortedKeys(counts) {
			out = append(out, fmt.Sprintf("%s: %d", k, counts[k]))
		}
	}
	return out
}

// flattenRecommendations accepts a list or a category -> list mapping,
// flattened in category order.
func flattenRecommendations(v interface{}) []string {
	switch v.(type) {
	case []string, []interface{}:
		return models.ToStrings(v)
	}
	lists := models.ToStringLists(v)
	var out []string
	for _, k := range sortedKeys(lists) {
		out = append(out, lists[k]...)
	}
	return out
}

// topItems keeps the topN entries of every category by count.
func topItems(categories map[string]map[string]int) map[string][]string {
	out := make(map[string][]string, len(categories))
	for category, counts := range categories {
		out[category] = topKeys(counts, topN)
	}
	return out
}

// topKeys returns up to n keys by descending count, ties broken by name.
func topKeys(counts map[string]int, n int) []string {
	keys := sortedKeys(counts)
	sort.SliceStable(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	return window(keys, 0, n)
}

func bump(m map[string]map[string]int, category, key string, n int) {
	if m[category] == nil {
		m[category] = make(map[string]int)
	}
	m[category][key] += n
}

func metadataOf(results map[string]models.Result) map[string]interface{} {
	if meta, ok := results[validation.MetadataKey]; ok {
		return meta
	}
	return map[string]interface{}{}
}

// finalConfidence reads the final confidence recorded by finalize.
func finalConfidence(results map[string]models.Result, def float64) float64 {
	if c, ok := models.ToFloat(metadataOf(results)["final_confidence"]); ok {
		return c
	}
	return def
}

func sortedResultIDs(results map[string]models.Result) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		if id != validation.MetadataKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// window returns s[from:to] clamped to the slice bounds, never nil.
func window(s []string, from, to int) []string {
	if from > len(s) {
		from = len(s)
	}
	if to > len(s) {
		to = len(s)
	}
	return append([]string{}, s[from:to]...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
