package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/referee/internal/llm"
)

// ErrNoAPIKey is returned when the selected provider needs a key and none is configured.
// It is the same sentinel the llm backends return.
var ErrNoAPIKey = llm.ErrNoAPIKey

// apiKeyEnv maps providers that need an API key to the environment variable holding it.
var apiKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// RequiresAPIKey reports whether provider authenticates with an API key.
// Bedrock uses AWS credentials and Ollama runs locally.
func RequiresAPIKey(provider string) bool {
	_, ok := apiKeyEnv[provider]
	return ok
}

// APIKeyEnvVar returns the environment variable consulted for provider's key.
func APIKeyEnvVar(provider string) string {
	return apiKeyEnv[provider]
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variable, config file.
// Providers without API keys return "" and no error.
func GetAPIKey(cfg *Config) (string, error) {
	provider := providerOf(cfg)
	envVar, ok := apiKeyEnv[provider]
	if !ok {
		return "", nil
	}

	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", fmt.Errorf("%w for %s (set %s)", ErrNoAPIKey, provider, envVar)
}

// ValidateAPIKey performs basic format validation on a key for provider.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("invalid API key format: expected 'sk-' prefix")
		}
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
	KeySourceEnv         KeySource = "environment"
	KeySourceConfig      KeySource = "config_file"
	KeySourceNone        KeySource = "none"
	KeySourceNotRequired KeySource = "not_required"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	envVar, ok := apiKeyEnv[providerOf(cfg)]
	if !ok {
		return KeySourceNotRequired
	}

	if os.Getenv(envVar) != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}

func providerOf(cfg *Config) string {
	if cfg == nil || cfg.LLM.Provider == "" {
		return "anthropic"
	}
	return cfg.LLM.Provider
}
