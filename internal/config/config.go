// Package config handles configuration loading and management for spoc.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator/policy"
)

// ProjectConfigName is the project-level config file searched for upward from cwd.
const ProjectConfigName = ".spoc.yaml"

// Config holds all configuration for spoc.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Tools        ToolsConfig        `mapstructure:"tools"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OrchestratorConfig holds the control loop settings fed into policy.Config.
type OrchestratorConfig struct {
	MaxIterations       int           `mapstructure:"max_iterations"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxRetries          int           `mapstructure:"max_retries"`
	MaxParallelTasks    int           `mapstructure:"max_parallel_tasks"`
	IterationBudget     time.Duration `mapstructure:"iteration_budget"`
	RunTimeout          time.Duration `mapstructure:"run_timeout"`
	TaskTimeout         time.Duration `mapstructure:"task_timeout"`
}

// StorageConfig holds on-disk locations. Relative paths resolve against the
// working root.
type StorageConfig struct {
	KnowledgeDB string        `mapstructure:"knowledge_db"`
	HistoryDB   string        `mapstructure:"history_db"`
	CacheDir    string        `mapstructure:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// ToolsConfig points at an optional tool catalog override file.
type ToolsConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GOOGLE_API_KEY, GEMINI_API_KEY, SPOC_KNOWLEDGE_DB)
// 2. Project config (.spoc.yaml in current directory or parent)
// 3. User config (~/.config/spoc/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini.api_key", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("storage.knowledge_db", "SPOC_KNOWLEDGE_DB")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes cfg to path, creating parent directories.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("gemini.api_key", cfg.Gemini.APIKey)
	v.Set("gemini.model", cfg.Gemini.Model)
	v.Set("orchestrator.max_iterations", cfg.Orchestrator.MaxIterations)
	v.Set("orchestrator.confidence_threshold", cfg.Orchestrator.ConfidenceThreshold)
	v.Set("orchestrator.max_retries", cfg.Orchestrator.MaxRetries)
	v.Set("orchestrator.max_parallel_tasks", cfg.Orchestrator.MaxParallelTasks)
	v.Set("orchestrator.iteration_budget", cfg.Orchestrator.IterationBudget.String())
	v.Set("orchestrator.run_timeout", cfg.Orchestrator.RunTimeout.String())
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("storage.knowledge_db", cfg.Storage.KnowledgeDB)
	v.Set("storage.history_db", cfg.Storage.HistoryDB)
	v.Set("storage.cache_dir", cfg.Storage.CacheDir)
	v.Set("storage.cache_ttl", cfg.Storage.CacheTTL.String())
	v.Set("tools.catalog_path", cfg.Tools.CatalogPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Policy builds the orchestrator policy from the orchestrator section.
// Unset or out-of-range values fall back to policy defaults.
func (c *Config) Policy() *policy.Config {
	p := policy.Default()
	o := c.Orchestrator
	if o.MaxIterations > 0 {
		p.Loop.MaxIterations = o.MaxIterations
	}
	if o.RunTimeout > 0 {
		p.Loop.RunTimeout = o.RunTimeout
	}
	if o.IterationBudget > 0 {
		p.Selection.IterationBudget = o.IterationBudget
	}
	if o.ConfidenceThreshold > 0 {
		p.Validation.ConfidenceThreshold = o.ConfidenceThreshold
	}
	if o.MaxRetries > 0 {
		p.Validation.MaxRetries = o.MaxRetries
	}
	if o.MaxParallelTasks > 0 {
		p.Execution.MaxParallelTasks = o.MaxParallelTasks
	}
	if o.TaskTimeout > 0 {
		p.Execution.TaskTimeout = o.TaskTimeout
	}
	p.Normalize()
	return p
}

// ResolvePath joins a relative storage path onto root.
func ResolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", d.Gemini.Model)

	v.SetDefault("orchestrator.max_iterations", d.Orchestrator.MaxIterations)
	v.SetDefault("orchestrator.confidence_threshold", d.Orchestrator.ConfidenceThreshold)
	v.SetDefault("orchestrator.max_retries", d.Orchestrator.MaxRetries)
	v.SetDefault("orchestrator.max_parallel_tasks", d.Orchestrator.MaxParallelTasks)
	v.SetDefault("orchestrator.iteration_budget", "30m")
	v.SetDefault("orchestrator.run_timeout", "30m")
	v.SetDefault("orchestrator.task_timeout", "10m")

	v.SetDefault("storage.knowledge_db", d.Storage.KnowledgeDB)
	v.SetDefault("storage.history_db", d.Storage.HistoryDB)
	v.SetDefault("storage.cache_dir", d.Storage.CacheDir)
	v.SetDefault("storage.cache_ttl", "24h")

	v.SetDefault("tools.catalog_path", "")
}

// getUserConfigDir returns the XDG config directory for spoc.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "spoc")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "spoc")
	}
	return filepath.Join(home, ".config", "spoc")
}

// findProjectConfig searches for .spoc.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:       10,
			ConfidenceThreshold: 0.75,
			MaxRetries:          3,
			MaxParallelTasks:    1,
			IterationBudget:     30 * time.Minute,
			RunTimeout:          30 * time.Minute,
			TaskTimeout:         10 * time.Minute,
		},
		Storage: StorageConfig{
			KnowledgeDB: filepath.Join(".spoc", "knowledge.db"),
			HistoryDB:   filepath.Join(".spoc", "history.db"),
			CacheDir:    filepath.Join(".spoc", "cache"),
			CacheTTL:    24 * time.Hour,
		},
	}
}
