package tui

import (
	"fmt"
	"time"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
)

// maxLogEntries bounds the activity log kept in memory.
const maxLogEntries = 200

// ProgressState is what the display knows about a run.
type ProgressState struct {
	RunID          string
	Iteration      int
	Completion     float64 // percent, 0-100
	Confidence     float64
	TasksStarted   int
	TasksCompleted int
	TasksFailed    int
	Replanned      int
	Retried        int
	ActiveTasks    map[string]string // task ID -> task type
	Elapsed        time.Duration
	Finished       bool
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
	Failed    bool
}

// apply folds an orchestrator event into the state and returns the log line
// it produces.
func (s *ProgressState) apply(ev orchestrator.OrchestratorEvent) LogEntry {
	if s.ActiveTasks == nil {
		s.ActiveTasks = make(map[string]string)
	}
	if ev.RunID != "" {
		s.RunID = ev.RunID
	}
	if ev.Iteration > s.Iteration {
		s.Iteration = ev.Iteration
	}
	if ev.Duration > s.Elapsed {
		s.Elapsed = ev.Duration
	}

	entry := LogEntry{Timestamp: ev.Timestamp, Kind: string(ev.Type), Message: ev.Message}
	switch ev.Type {
	case orchestrator.EventRunStarted:
		if entry.Message == "" {
			entry.Message = "run started"
		}
	case orchestrator.EventTaskStarted:
		s.TasksStarted++
		s.ActiveTasks[ev.TaskID] = ev.TaskType
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("%s (%s)", ev.TaskType, ev.TaskID)
		}
	case orchestrator.EventTaskCompleted:
		s.TasksCompleted++
		delete(s.ActiveTasks, ev.TaskID)
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("%s done", ev.TaskType)
		}
	case orchestrator.EventTaskFailed:
		s.TasksFailed++
		delete(s.ActiveTasks, ev.TaskID)
		entry.Failed = true
		if ev.Error != nil {
			entry.Message = fmt.Sprintf("%s failed: %v", ev.TaskType, ev.Error)
		}
	case orchestrator.EventIterationDone:
		s.Confidence = ev.Confidence
		s.Completion = ev.Completion
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("iteration %d: %.0f%% complete, confidence %.2f", ev.Iteration, ev.Completion, ev.Confidence)
		}
	case orchestrator.EventReplanned:
		s.Replanned += ev.Count
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("%d corrective tasks added", ev.Count)
		}
	case orchestrator.EventTasksRetried:
		s.Retried += ev.Count
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("%d failed tasks re-queued", ev.Count)
		}
	case orchestrator.EventRunDone:
		s.Finished = true
		s.Confidence = ev.Confidence
		s.Completion = ev.Completion
		s.ActiveTasks = make(map[string]string)
		if ev.Error != nil {
			entry.Failed = true
			entry.Message = fmt.Sprintf("run failed: %v", ev.Error)
		} else if entry.Message == "" {
			entry.Message = "run finished"
		}
	}
	return entry
}
