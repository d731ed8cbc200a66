package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/jayasaisrikar/spoc-agent/internal/api"
	"github.com/jayasaisrikar/spoc-agent/internal/cache"
	"github.com/jayasaisrikar/spoc-agent/internal/config"
	"github.com/jayasaisrikar/spoc-agent/internal/diagram"
	"github.com/jayasaisrikar/spoc-agent/internal/history"
	"github.com/jayasaisrikar/spoc-agent/internal/knowledge"
	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
	"github.com/jayasaisrikar/spoc-agent/internal/tools"
)

// app holds the collaborators shared by the commands.
type app struct {
	root      string
	cfg       *config.Config
	knowledge *knowledge.Store
	history   *history.Store
	cache     *cache.Cache
	ai        *api.Client
	diagrams  *diagram.Generator
	logger    *orchestrator.DebugLogger
	signals   *orchestrator.SignalWatcher
}

// workingRoot resolves --root, defaulting to the current directory.
func workingRoot() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

// openApp loads configuration and opens the stores. The AI client is
// created lazily by withAI.
func openApp() (*app, error) {
	root, err := workingRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{root: root, cfg: cfg, logger: orchestrator.NopLogger()}
	if verbose {
		a.logger = orchestrator.NewDebugLoggerForRepo(root)
	}

	a.knowledge, err = knowledge.Open(config.ResolvePath(root, cfg.Storage.KnowledgeDB))
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	a.history, err = history.Open(config.ResolvePath(root, cfg.Storage.HistoryDB))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open history store: %w", err)
	}
	a.cache, err = cache.New(config.ResolvePath(root, cfg.Storage.CacheDir), cfg.Storage.CacheTTL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.cache.SetDebugLog(a.logger.Log)
	a.diagrams = diagram.NewGenerator(diagram.DefaultFilesPerType)
	return a, nil
}

// withAI builds the multi-provider client from whatever keys are configured.
// With no keys the client answers from its heuristic fallback.
func (a *app) withAI(ctx context.Context) *api.Client {
	if a.ai != nil {
		return a.ai
	}

	var providers []api.Provider
	if a.cfg.Anthropic.UseBedrock {
		p, err := api.NewAnthropicProvider(api.AnthropicConfig{
			Model:         a.cfg.Anthropic.Model,
			UseAWSBedrock: true,
			AWSRegion:     a.cfg.Anthropic.AWSRegion,
			AWSProfile:    a.cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			printStatus("⚠", fmt.Sprintf("Bedrock unavailable: %v", err), color.FgYellow)
		} else {
			providers = append(providers, p)
		}
	} else if key, err := config.GetAPIKey(a.cfg, config.ProviderAnthropic); err == nil {
		p, err := api.NewAnthropicProvider(api.AnthropicConfig{Model: a.cfg.Anthropic.Model, APIKey: key})
		if err != nil {
			printStatus("⚠", fmt.Sprintf("Anthropic unavailable: %v", err), color.FgYellow)
		} else {
			providers = append(providers, p)
		}
	}

	if key, err := config.GetAPIKey(a.cfg, config.ProviderGemini); err == nil {
		p, err := api.NewGeminiProvider(ctx, key, a.cfg.Gemini.Model)
		if err != nil {
			printStatus("⚠", fmt.Sprintf("Gemini unavailable: %v", err), color.FgYellow)
		} else {
			providers = append(providers, p)
		}
	}

	if len(providers) == 0 {
		printStatus("⚠", "No AI provider configured, using heuristic analysis", color.FgYellow)
	}

	a.ai = api.NewClient(providers, api.WithCache(a.cache))
	a.ai.SetDebugLog(a.logger.Log)
	return a.ai
}

// newOrchestrator wires an Orchestrator from configuration.
func (a *app) newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	registry := tools.NewDefaultRegistry()
	if path := a.cfg.Tools.CatalogPath; path != "" {
		if err := tools.LoadCatalog(registry, config.ResolvePath(a.root, path)); err != nil {
			return nil, fmt.Errorf("load tool catalog: %w", err)
		}
	}

	if a.signals == nil {
		sw, err := orchestrator.NewSignalWatcher(a.root)
		if err != nil {
			a.logger.Log("[spoc] stop signals disabled: %v", err)
		} else {
			a.signals = sw
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithPolicy(a.cfg.Policy()),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithDiagramGenerator(a.diagrams),
		orchestrator.WithToolRegistry(registry),
		orchestrator.WithRecorder(a.history),
	}
	if a.signals != nil {
		opts = append(opts, orchestrator.WithSignalWatcher(a.signals))
	}

	return orchestrator.New(orchestrator.RequiredConfig{
		AI:    a.withAI(ctx),
		Store: a.knowledge,
	}, opts...), nil
}

func (a *app) close() {
	var errs []error
	if a.signals != nil {
		a.signals.Close()
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.knowledge != nil {
		errs = append(errs, a.knowledge.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
	}
}
