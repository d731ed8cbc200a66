package orchestrator

import (
	"context"

	"github.com/jayasaisrikar/spoc-agent/internal/capability"
	"github.com/jayasaisrikar/spoc-agent/internal/executor"
	"github.com/jayasaisrikar/spoc-agent/internal/history"
	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator/policy"
	"github.com/jayasaisrikar/spoc-agent/internal/planner"
	"github.com/jayasaisrikar/spoc-agent/internal/tools"
	"github.com/jayasaisrikar/spoc-agent/internal/validation"
)

// RequiredConfig contains the collaborators every Orchestrator needs.
// A nil AI client or store is tolerated: the handlers that depend on them
// return degraded results instead.
type RequiredConfig struct {
	// AI is the model client used by analysis and recommendation handlers.
	AI capability.AIClient
	// Store is the read-only knowledge store.
	Store capability.KnowledgeStore
}

// RunRecorder persists a summary of every finished run.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *history.Run) error
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	policyConfig *policy.Config
	logger       *DebugLogger
	diagrams     capability.DiagramGenerator
	registry     *tools.Registry
	recorder     RunRecorder
	signals      *SignalWatcher
	newRunID     func() string

	// Injectable dependencies for testing
	planner   *planner.Planner
	executor  *executor.Executor
	validator *validation.Validator
}

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithDiagramGenerator sets the Mermaid diagram generator used by diagram tasks.
func WithDiagramGenerator(d capability.DiagramGenerator) Option {
	return func(o *orchestratorOptions) { o.diagrams = d }
}

// WithToolRegistry sets the tool registry. Defaults to tools.NewDefaultRegistry.
func WithToolRegistry(r *tools.Registry) Option {
	return func(o *orchestratorOptions) { o.registry = r }
}

// WithRecorder sets where finished runs are recorded.
func WithRecorder(r RunRecorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}

// WithSignalWatcher sets the stop-signal watcher checked between iterations.
func WithSignalWatcher(w *SignalWatcher) Option {
	return func(o *orchestratorOptions) { o.signals = w }
}

// WithRunIDGenerator sets the run ID generator (mainly for testing).
func WithRunIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) { o.newRunID = fn }
}

// WithPlanner sets a custom planner (mainly for testing).
func WithPlanner(p *planner.Planner) Option {
	return func(o *orchestratorOptions) { o.planner = p }
}

// WithExecutor sets a custom executor (mainly for testing).
func WithExecutor(e *executor.Executor) Option {
	return func(o *orchestratorOptions) { o.executor = e }
}

// WithValidator sets a custom validator (mainly for testing).
func WithValidator(v *validation.Validator) Option {
	return func(o *orchestratorOptions) { o.validator = v }
}
