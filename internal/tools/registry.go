// Package tools maintains the catalog of executor capabilities and picks
// the best one for each task type from static ratings and rolling metrics.
package tools

import (
	"log"
	"sync"
	"time"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	// DefaultTool is returned when no registered tool matches a task type.
	DefaultTool = "structure_analyzer"
	// InitialSuccessRate seeds the success-rate average of a new tool.
	InitialSuccessRate = 0.8
	// DefaultAvgExecutionTime seeds the execution-time average of a new tool.
	DefaultAvgExecutionTime = 300 * time.Second
	// Alpha is the smoothing factor of both moving averages.
	Alpha = 0.1
)

// Selection weights.
const (
	weightDomains     = 0.4
	weightConfidence  = 0.3
	weightSpeed       = 0.2
	weightSuccessRate = 0.1
)

// taskDomains maps each task type to the domains a tool must cover.
var taskDomains = map[models.TaskType][]string{
	models.TaskTypeAnalyzeStructure:    {"files", "architecture"},
	models.TaskTypeExtractPatterns:     {"patterns", "design"},
	models.TaskTypeGenerateDiagram:     {"visualization", "architecture"},
	models.TaskTypeCrossRepoAnalysis:   {"organization", "patterns"},
	models.TaskTypeTechStackMapping:    {"technology", "dependencies"},
	models.TaskTypeTeamRecommendations: {"recommendations", "team"},
	models.TaskTypeValidateAnalysis:    {"quality", "validation"},
	models.TaskTypeSuggestFeatures:     {"recommendations", "architecture"},
}

// RequiredDomains returns the domains a task type needs, or ["general"].
func RequiredDomains(taskType models.TaskType) []string {
	if d, ok := taskDomains[taskType]; ok {
		return d
	}
	return []string{"general"}
}

// Registry is a catalog of tools with rolling performance metrics.
// All methods are safe for concurrent use; metric updates are serialized.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]*models.ToolConfig
	order       []string
	defaultTool string
	debugLog    func(format string, args ...interface{})
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:       make(map[string]*models.ToolConfig),
		defaultTool: DefaultTool,
		debugLog:    func(format string, args ...interface{}) {},
	}
}

// NewDefaultRegistry creates a registry holding the built-in catalog.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cfg := range DefaultCatalog() {
		r.Register(cfg)
	}
	return r
}

// SetDebugLog sets the debug logging function.
func (r *Registry) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// SetDefaultTool changes the fallback tool name.
func (r *Registry) SetDefaultTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultTool = name
}

// Register inserts or overwrites a tool by name and resets its rolling metrics.
// An overwritten tool keeps its original position for tie-breaking.
func (r *Registry) Register(cfg models.ToolConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg.SuccessRate = InitialSuccessRate
	if cfg.AvgExecutionTime <= 0 {
		cfg.AvgExecutionTime = DefaultAvgExecutionTime
	}
	cfg.UsageCount = 0
	cfg.LastUsed = nil
	cfg.Domains = append([]string(nil), cfg.Domains...)

	if _, exists := r.tools[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.tools[cfg.Name] = &cfg
	r.debugLog("[tools.Register] %s domains=%v", cfg.Name, cfg.Domains)
}

// SetAvailable toggles a tool's availability flag.
func (r *Registry) SetAvailable(name string, available bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, ok := r.tools[name]
	if !ok {
		return false
	}
	tool.Available = available
	return true
}

// SelectBest returns the highest-scoring available tool whose domains
// intersect the task type's, restricted to ectx.AvailableTools when set.
// Ties go to the earliest registered tool. When nothing matches, the
// default tool is returned if it is registered, otherwise "".
func (r *Registry) SelectBest(taskType models.TaskType, ectx *models.ExecutionContext) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	required := RequiredDomains(taskType)

	best := ""
	bestScore := 0.0
	for _, name := range r.order {
		tool := r.tools[name]
		if !tool.Available {
			continue
		}
		if ectx != nil && len(ectx.AvailableTools) > 0 && !ectx.AvailableTools[name] {
			continue
		}

		overlap := 0
		for _, d := range required {
			if tool.HasDomain(d) {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		score := weightDomains*float64(overlap) +
			weightConfidence*tool.Confidence +
			weightSpeed*tool.Speed +
			weightSuccessRate*tool.SuccessRate
		if best == "" || score > bestScore {
			best, bestScore = name, score
		}
	}

	if best != "" {
		r.debugLog("[tools.SelectBest] %s -> %s (score=%.3f)", taskType, best, bestScore)
		return best
	}
	if _, ok := r.tools[r.defaultTool]; ok {
		r.debugLog("[tools.SelectBest] %s -> default %s", taskType, r.defaultTool)
		return r.defaultTool
	}
	return ""
}

// UpdatePerformance folds one attempt into the tool's moving averages.
// Unknown tool names are logged and ignored.
func (r *Registry) UpdatePerformance(name string, success bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, ok := r.tools[name]
	if !ok {
		log.Printf("[tools] WARNING: performance update for unknown tool %q ignored", name)
		return
	}

	sample := 0.0
	if success {
		sample = 1.0
	}
	if elapsed < 0 {
		elapsed = 0
	}

	tool.SuccessRate = tool.SuccessRate*(1-Alpha) + Alpha*sample
	tool.AvgExecutionTime = time.Duration(float64(tool.AvgExecutionTime)*(1-Alpha) + Alpha*float64(elapsed))
	tool.UsageCount++
	now := time.Now()
	tool.LastUsed = &now
}

// Get returns a copy of the named tool.
func (r *Registry) Get(name string) (models.ToolConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return models.ToolConfig{}, false
	}
	return copyTool(tool), true
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Snapshot returns copies of every tool in registration order.
func (r *Registry) Snapshot() []models.ToolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, copyTool(r.tools[name]))
	}
	return out
}

// Metrics summarizes tool performance for introspection.
func (r *Registry) Metrics() map[string]interface{} {
	perf := make(map[string]interface{})
	for _, tool := range r.Snapshot() {
		perf[tool.Name] = map[string]interface{}{
			"success_rate":       tool.SuccessRate,
			"avg_execution_time": tool.AvgExecutionTime.Seconds(),
			"usage_count":        tool.UsageCount,
			"available":          tool.Available,
		}
	}
	return perf
}

func copyTool(t *models.ToolConfig) models.ToolConfig {
	c := *t
	c.Domains = append([]string(nil), t.Domains...)
	if t.LastUsed != nil {
		lu := *t.LastUsed
		c.LastUsed = &lu
	}
	return c
}
