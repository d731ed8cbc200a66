// Package orchestrator drives AI-assisted codebase analysis runs.
//
// A run is planned by the planner, then iterated until the goal is achieved,
// no task is ready, the iteration ceiling is reached, or the run is stopped:
//   - Select: ready tasks are scored by priority, core task type, overlap
//     with the user's request and retry count, then taken greedily within
//     the per-iteration task and time budget
//   - Execute: the executor runs the batch and every task lands in the
//     completed or failed collection
//   - Validate: the validator scores all results so far; below the
//     confidence threshold its recommendations trigger replanning or retries
//
// After the loop the run is finalized with a final validation and its
// metadata, then synthesized into an organization or repository report.
// Failures inside an iteration are logged and the loop carries on; only a
// failure of the whole run produces an unsuccessful AnalysisResult.
//
// Example usage:
//
//	orch := orchestrator.New(
//		orchestrator.RequiredConfig{AI: client, Store: store},
//		orchestrator.WithPolicy(policy.Default()),
//		orchestrator.WithDiagramGenerator(diagram.NewGenerator()),
//	)
//	defer orch.Close()
//	result := orch.AnalyzeOrganization(ctx, "map our frontend stack", nil, "")
package orchestrator
