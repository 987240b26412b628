// Package config holds all configuration for the data designer agent.
// Configuration is loaded from a YAML file with environment variable
// overrides for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all data designer configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM reasoning model configuration
	LLM LLMConfig `yaml:"llm"`

	// Remote data designer service configuration
	Designer DesignerConfig `yaml:"designer"`

	// Session store configuration
	Store StoreConfig `yaml:"store"`

	// Conversation agent configuration
	Agent AgentConfig `yaml:"agent"`

	// Local dataset viewer configuration
	Dataset DatasetConfig `yaml:"dataset"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning model used by the agent loop.
// The endpoint must be OpenAI-compatible (a LiteLLM proxy works).
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, litellm
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// DesignerConfig configures the remote data designer service that
// executes generation jobs.
type DesignerConfig struct {
	BaseURL string `yaml:"base_url"`
	Project string `yaml:"project"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures session state persistence.
type StoreConfig struct {
	// Backend selects the primary store: "file" or "s3"
	Backend string `yaml:"backend"`

	// File backend settings
	Path string `yaml:"path"`

	// S3 backend settings
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	Region    string `yaml:"region"`

	// FallbackPath is where saves land when the primary backend fails
	FallbackPath string `yaml:"fallback_path"`
}

// AgentConfig configures the conversation orchestrator and job poller.
type AgentConfig struct {
	// PollInterval is the delay between job status polls
	PollInterval string `yaml:"poll_interval"`

	// MaxPollAttempts bounds the polling loop
	MaxPollAttempts int `yaml:"max_poll_attempts"`

	// MaxIterations bounds reasoner round-trips in a single turn
	MaxIterations int `yaml:"max_iterations"`

	// HistoryLimit caps retained conversation messages per session
	HistoryLimit int `yaml:"history_limit"`

	// CheckpointPath is the SQLite database for conversation history
	CheckpointPath string `yaml:"checkpoint_path"`
}

// DatasetConfig configures the local DuckDB viewer for imported results.
type DatasetConfig struct {
	// DatabasePath is the DuckDB file for imported datasets
	DatabasePath string `yaml:"database_path"`

	// OutputDir is where downloaded result files are written
	OutputDir string `yaml:"output_dir"`

	// Watch enables the filesystem watcher that auto-imports new files
	Watch bool `yaml:"watch"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, text
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"` // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false (production mode).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "data-designer",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "litellm",
			Model:    "gpt-4.1",
			BaseURL:  "http://localhost:4000/v1",
			Timeout:  "120s",
		},

		Designer: DesignerConfig{
			BaseURL: "http://localhost:8080",
			Project: "nemo-data-designer",
			Timeout: "60s",
		},

		Store: StoreConfig{
			Backend:      "file",
			Path:         "data/sessions",
			KeyPrefix:    "sessions/",
			FallbackPath: "data/sessions",
		},

		Agent: AgentConfig{
			PollInterval:    "1s",
			MaxPollAttempts: 120,
			MaxIterations:   25,
			HistoryLimit:    50,
			CheckpointPath:  "data/conversations.db",
		},

		Dataset: DatasetConfig{
			DatabasePath: "data/datasets.duckdb",
			OutputDir:    "data/results",
			Watch:        false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("LITELLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "litellm"
	}
	if url := os.Getenv("LITELLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("DESIGNER_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Remote service endpoint from environment
	if url := os.Getenv("DATA_DESIGNER_URL"); url != "" {
		c.Designer.BaseURL = url
	}
	if project := os.Getenv("DATA_DESIGNER_PROJECT"); project != "" {
		c.Designer.Project = project
	}

	// Session store from environment
	if bucket := os.Getenv("SESSION_BUCKET"); bucket != "" {
		c.Store.Bucket = bucket
		c.Store.Backend = "s3"
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Store.Region = region
	}

	// Local paths from environment
	if path := os.Getenv("DESIGNER_DB"); path != "" {
		c.Dataset.DatabasePath = path
	}
	if dir := os.Getenv("DESIGNER_OUTPUT_DIR"); dir != "" {
		c.Dataset.OutputDir = dir
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetDesignerTimeout returns the remote service timeout as a duration.
func (c *Config) GetDesignerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Designer.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetPollInterval returns the job poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Agent.PollInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// ValidBackends lists all supported session store backends.
var ValidBackends = []string{"file", "s3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or LITELLM_API_KEY)")
	}

	validBackend := false
	for _, b := range ValidBackends {
		if c.Store.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}

	if c.Store.Backend == "s3" && c.Store.Bucket == "" {
		return fmt.Errorf("s3 store backend requires a bucket")
	}

	if c.Agent.MaxPollAttempts <= 0 {
		return fmt.Errorf("max_poll_attempts must be positive, got %d", c.Agent.MaxPollAttempts)
	}

	return nil
}
