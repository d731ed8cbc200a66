// Package validation scores the results of an orchestration run and turns
// what it finds into issues and recommendations the orchestrator can act on.
//
// # Overview
//
// ValidateAndCorrect runs four independent checks over the accumulated
// results of a run:
//
//  1. Completeness - how many of the goal's tasks produced a result
//  2. Task quality - one check per result, including a type-specific check
//  3. Consistency - technology detection across all results
//  4. Organizational context - coverage and pattern alignment
//
// Every check reports a confidence in [0,1]. The aggregate confidence is the
// arithmetic mean over all checks, including the ones that found issues, so
// a failing check pulls the aggregate down rather than dropping out of it.
//
// # Task Types
//
// The executor stamps each result with the type of the task that produced
// it. Results without that tag are classified from the task ID, then from
// the keys present in the result (see InferTaskType).
//
// # Recommendations
//
// Recommendations are plain sentences. The orchestrator reacts to two
// words in them: "replan" triggers corrective tasks for the issues found,
// "retry" re-queues failed tasks that still have retries left.
//
// # Usage
//
//	v := validation.New(validation.DefaultConfidenceThreshold)
//	res := v.ValidateAndCorrect(results, goal, ectx)
//	if res.Confidence < v.Threshold() {
//	    // apply corrections
//	}
//
//	final := v.FinalValidation(results, goal)
package validation
