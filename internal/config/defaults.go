package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	History      HistoryConfig      `json:"history"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Audit        AuditConfig        `json:"audit"`
	Provider     ProviderConfig     `json:"provider"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Pharmacy     PharmacyConfig     `json:"pharmacy"`
}

type OrchestratorConfig struct {
	MaxIterations int  `json:"max_iterations"` // Default: 10
	MaxWorkers    int  `json:"max_workers"`    // Default: 10
	ParallelTools bool `json:"parallel_tools"` // Default: true

	// Emit [TOOL_CALL_START]/[TOOL_CALL_RESULT] markers in the fragment stream
	EmitToolEvents bool `json:"emit_tool_events"` // Default: false

	// Input normalization
	MaxMessageLength     int `json:"max_message_length"`     // Default: 2000 (characters)
	MaxWordRepeats       int `json:"max_word_repeats"`       // Default: 10
	CollapsedWordRepeats int `json:"collapsed_word_repeats"` // Default: 2

	ContextHints bool   `json:"context_hints"` // Default: true
	SystemPrompt string `json:"system_prompt"`
}

type HistoryConfig struct {
	MaxMessages int `json:"max_messages"` // Default: 20
	MaxTokens   int `json:"max_tokens"`   // Default: 4000 (estimated)
	KeepRecent  int `json:"keep_recent"`  // Default: 10
}

type RateLimitConfig struct {
	PerMinute   int `json:"per_minute"`  // Default: 60
	PerDay      int `json:"per_day"`     // Default: 1000
	Consecutive int `json:"consecutive"` // Default: 10
}

type AuditConfig struct {
	Enabled bool   `json:"enabled"` // Default: true
	Dir     string `json:"dir"`     // Default: "logs"
}

type ProviderConfig struct {
	Name           string `json:"name"`            // "openai" or "gemini"
	Model          string `json:"model"`           // Default: "gpt-4o-mini"
	BaseURL        string `json:"base_url"`        // Empty uses the SDK default
	TimeoutSeconds int    `json:"timeout_seconds"` // Default: 60
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
}

type MetricsConfig struct {
	Addr string `json:"addr"` // Empty disables the /metrics listener
}

type PharmacyConfig struct {
	CatalogPath string `json:"catalog_path"` // Empty uses the embedded catalog
}

// DefaultSystemPrompt is sent as the first message of every run unless overridden.
const DefaultSystemPrompt = `You are a pharmacy assistant. Answer questions about medications, ` +
	`stock availability and prescription requirements using only the provided tools. ` +
	`Never give medical advice, diagnoses or dosage recommendations beyond the label; ` +
	`refer the user to a pharmacist or physician instead. ` +
	`Reply in the language the user writes in.`

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxIterations:        10,
			MaxWorkers:           10,
			ParallelTools:        true,
			EmitToolEvents:       false,
			MaxMessageLength:     2000,
			MaxWordRepeats:       10,
			CollapsedWordRepeats: 2,
			ContextHints:         true,
			SystemPrompt:         DefaultSystemPrompt,
		},
		History: HistoryConfig{
			MaxMessages: 20,
			MaxTokens:   4000,
			KeepRecent:  10,
		},
		RateLimit: RateLimitConfig{
			PerMinute:   60,
			PerDay:      1000,
			Consecutive: 10,
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     "logs",
		},
		Provider: ProviderConfig{
			Name:           "openai",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
