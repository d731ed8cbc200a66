package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify spoc configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/spoc/config.yaml
Project-specific overrides can be placed in .spoc.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by 'spoc config', in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"gemini.api_key",
	"gemini.model",
	"orchestrator.max_iterations",
	"orchestrator.confidence_threshold",
	"orchestrator.max_retries",
	"orchestrator.max_parallel_tasks",
	"orchestrator.iteration_budget",
	"orchestrator.run_timeout",
	"orchestrator.task_timeout",
	"storage.knowledge_db",
	"storage.history_db",
	"storage.cache_dir",
	"storage.cache_ttl",
	"tools.catalog_path",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	for _, provider := range []string{config.ProviderAnthropic, config.ProviderGemini} {
		fmt.Printf("# %s key source: %s\n", provider, config.GetAPIKeySource(cfg, provider))
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if strings.HasSuffix(key, "api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
// API keys are masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	o, s := cfg.Orchestrator, cfg.Storage
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "gemini.api_key":
		return config.MaskAPIKey(cfg.Gemini.APIKey), nil
	case "gemini.model":
		return cfg.Gemini.Model, nil
	case "orchestrator.max_iterations":
		return strconv.Itoa(o.MaxIterations), nil
	case "orchestrator.confidence_threshold":
		return strconv.FormatFloat(o.ConfidenceThreshold, 'f', -1, 64), nil
	case "orchestrator.max_retries":
		return strconv.Itoa(o.MaxRetries), nil
	case "orchestrator.max_parallel_tasks":
		return strconv.Itoa(o.MaxParallelTasks), nil
	case "orchestrator.iteration_budget":
		return o.IterationBudget.String(), nil
	case "orchestrator.run_timeout":
		return o.RunTimeout.String(), nil
	case "orchestrator.task_timeout":
		return o.TaskTimeout.String(), nil
	case "storage.knowledge_db":
		return s.KnowledgeDB, nil
	case "storage.history_db":
		return s.HistoryDB, nil
	case "storage.cache_dir":
		return s.CacheDir, nil
	case "storage.cache_ttl":
		return s.CacheTTL.String(), nil
	case "tools.catalog_path":
		return cfg.Tools.CatalogPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	o, s := &cfg.Orchestrator, &cfg.Storage
	var err error
	switch k := strings.ToLower(key); k {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(config.ProviderAnthropic, value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = parseBool(k, value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "gemini.api_key":
		if err := config.ValidateAPIKey(config.ProviderGemini, value); err != nil {
			return err
		}
		cfg.Gemini.APIKey = value
	case "gemini.model":
		cfg.Gemini.Model = value
	case "orchestrator.max_iterations":
		o.MaxIterations, err = parseInt(k, value)
	case "orchestrator.confidence_threshold":
		o.ConfidenceThreshold, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("invalid number for %s: %w", k, err)
		}
	case "orchestrator.max_retries":
		o.MaxRetries, err = parseInt(k, value)
	case "orchestrator.max_parallel_tasks":
		o.MaxParallelTasks, err = parseInt(k, value)
	case "orchestrator.iteration_budget":
		o.IterationBudget, err = parseDuration(k, value)
	case "orchestrator.run_timeout":
		o.RunTimeout, err = parseDuration(k, value)
	case "orchestrator.task_timeout":
		o.TaskTimeout, err = parseDuration(k, value)
	case "storage.knowledge_db":
		s.KnowledgeDB = value
	case "storage.history_db":
		s.HistoryDB = value
	case "storage.cache_dir":
		s.CacheDir = value
	case "storage.cache_ttl":
		s.CacheTTL, err = parseDuration(k, value)
	case "tools.catalog_path":
		cfg.Tools.CatalogPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
