package config

import (
	"fmt"
	"slices"
)

var (
	validProviders  = []string{"openai", "gemini"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
)

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	// Orchestrator
	if c.Orchestrator.MaxIterations < 1 {
		errs = append(errs, "orchestrator.max_iterations must be >= 1")
	}
	if c.Orchestrator.MaxWorkers < 1 {
		errs = append(errs, "orchestrator.max_workers must be >= 1")
	}
	if c.Orchestrator.MaxMessageLength < 1 {
		errs = append(errs, "orchestrator.max_message_length must be >= 1")
	}
	if c.Orchestrator.CollapsedWordRepeats < 1 {
		errs = append(errs, "orchestrator.collapsed_word_repeats must be >= 1")
	}
	if c.Orchestrator.MaxWordRepeats < c.Orchestrator.CollapsedWordRepeats {
		errs = append(errs, "orchestrator.max_word_repeats must be >= orchestrator.collapsed_word_repeats")
	}

	// History
	if c.History.MaxMessages < 1 {
		errs = append(errs, "history.max_messages must be >= 1")
	}
	if c.History.MaxTokens < 1 {
		errs = append(errs, "history.max_tokens must be >= 1")
	}
	if c.History.KeepRecent < 0 {
		errs = append(errs, "history.keep_recent must be >= 0")
	}
	if c.History.KeepRecent > c.History.MaxMessages {
		errs = append(errs, "history.keep_recent must be <= history.max_messages")
	}

	// Rate limits
	if c.RateLimit.PerMinute < 1 {
		errs = append(errs, "rate_limit.per_minute must be >= 1")
	}
	if c.RateLimit.PerDay < 1 {
		errs = append(errs, "rate_limit.per_day must be >= 1")
	}
	if c.RateLimit.Consecutive < 1 {
		errs = append(errs, "rate_limit.consecutive must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Dir == "" {
		errs = append(errs, "audit.dir must be set when audit.enabled is true")
	}

	// Provider
	if !slices.Contains(validProviders, c.Provider.Name) {
		errs = append(errs, fmt.Sprintf("provider.name must be one of %v", validProviders))
	}
	if c.Provider.Model == "" {
		errs = append(errs, "provider.model must be set")
	}
	if c.Provider.TimeoutSeconds < 1 {
		errs = append(errs, "provider.timeout_seconds must be >= 1")
	}

	// Logging
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of %v", validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("logging.format must be one of %v", validLogFormats))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
