package config

import (
	"errors"
	"fmt"
)

// Providers lists the accepted llm.provider values.
var Providers = []string{"anthropic", "bedrock", "openai", "ollama"}

// Drivers lists the accepted storage.driver values.
var Drivers = []string{"sqlite", "sqlite3"}

// Validate reports every invalid setting in cfg.
func (c *Config) Validate() error {
	var problems []error

	if !contains(Providers, c.LLM.Provider) {
		problems = append(problems, fmt.Errorf("llm.provider %q: want one of %v", c.LLM.Provider, Providers))
	}
	if c.LLM.RequestsPerSecond < 0 {
		problems = append(problems, fmt.Errorf("llm.requests_per_second must not be negative"))
	}
	if c.LLM.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("llm.max_retries must not be negative"))
	}
	if c.LLM.Timeout < 0 {
		problems = append(problems, fmt.Errorf("llm.timeout must not be negative"))
	}

	if c.Workflow.MaxIterations <= 0 {
		problems = append(problems, fmt.Errorf("workflow.max_iterations must be positive, got %d", c.Workflow.MaxIterations))
	}
	if c.Workflow.MaxReruns < 0 {
		problems = append(problems, fmt.Errorf("workflow.max_reruns must not be negative"))
	}

	for _, kind := range stageKinds() {
		sc := c.Stage(kind)
		if sc.Temperature < 0 || sc.Temperature > 2 {
			problems = append(problems, fmt.Errorf("stages.%s.temperature %.2f outside [0, 2]", kind, sc.Temperature))
		}
		if sc.MaxTokens <= 0 {
			problems = append(problems, fmt.Errorf("stages.%s.max_tokens must be positive", kind))
		}
	}

	if c.Storage.Enabled {
		if !contains(Drivers, c.Storage.Driver) {
			problems = append(problems, fmt.Errorf("storage.driver %q: want one of %v", c.Storage.Driver, Drivers))
		}
		if c.Storage.Path == "" {
			problems = append(problems, fmt.Errorf("storage.path is required when storage is enabled"))
		}
	}

	if c.Logging.Verbosity < 0 || c.Logging.Verbosity > 2 {
		problems = append(problems, fmt.Errorf("logging.verbosity must be 0, 1 or 2"))
	}

	return errors.Join(problems...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
