package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider names used for key lookup.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// envKeys lists the environment variables checked per provider, in order.
var envKeys = map[string][]string{
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// placeholders are template values from sample env files, treated as unset.
var placeholders = map[string]bool{
	"your_gemini_api_key_here":    true,
	"your_anthropic_api_key_here": true,
}

// GetAPIKey returns the key for provider. It checks the environment first,
// then the config file.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	key, _ := lookupKey(cfg, provider)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

func lookupKey(cfg *Config, provider string) (string, KeySource) {
	for _, name := range envKeys[provider] {
		if key := os.Getenv(name); usable(key) {
			return key, KeySourceEnv
		}
	}

	if cfg != nil {
		var raw string
		switch provider {
		case ProviderAnthropic:
			raw = cfg.Anthropic.APIKey
		case ProviderGemini:
			raw = cfg.Gemini.APIKey
		}
		if key := os.ExpandEnv(raw); usable(key) && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

func usable(key string) bool {
	return key != "" && !placeholders[key]
}

// ValidateAPIKey performs basic format checks without contacting the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if provider == ProviderAnthropic && !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	_, src := lookupKey(cfg, provider)
	return src
}
