package config

import (
	"path/filepath"
	"testing"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "data-designer" {
		t.Errorf("expected Name=data-designer, got %s", cfg.Name)
	}
	if cfg.Designer.Project != "nemo-data-designer" {
		t.Errorf("expected Project=nemo-data-designer, got %s", cfg.Designer.Project)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("expected Backend=file, got %s", cfg.Store.Backend)
	}
	if cfg.Agent.MaxPollAttempts != 120 {
		t.Errorf("expected MaxPollAttempts=120, got %d", cfg.Agent.MaxPollAttempts)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LITELLM_API_KEY", "")
	t.Setenv("LITELLM_BASE_URL", "")
	t.Setenv("SESSION_BUCKET", "")
	t.Setenv("AWS_REGION", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.Designer.BaseURL = "http://designer.internal:9000"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.APIKey != "sk-test" {
		t.Errorf("expected APIKey=sk-test, got %s", loaded.LLM.APIKey)
	}
	if loaded.Designer.BaseURL != "http://designer.internal:9000" {
		t.Errorf("expected designer base URL to round-trip, got %s", loaded.Designer.BaseURL)
	}
}

func TestConfig_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LITELLM_API_KEY", "")
	t.Setenv("SESSION_BUCKET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load should not fail on missing file: %v", err)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("expected defaults, got backend %s", cfg.Store.Backend)
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.GetPollInterval().Seconds() != 1 {
		t.Errorf("expected 1s poll interval, got %v", cfg.GetPollInterval())
	}

	cfg.Agent.PollInterval = "garbage"
	if cfg.GetPollInterval().Seconds() != 1 {
		t.Errorf("expected fallback 1s on bad duration, got %v", cfg.GetPollInterval())
	}

	cfg.LLM.Timeout = "30s"
	if cfg.GetLLMTimeout().Seconds() != 30 {
		t.Errorf("expected 30s LLM timeout, got %v", cfg.GetLLMTimeout())
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"

	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config should pass: %v", err)
	}

	cfg.Store.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg.Store.Backend = "s3"
	cfg.Store.Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}

	cfg.Store.Bucket = "session-bucket"
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 backend with bucket should pass: %v", err)
	}

	cfg.Agent.MaxPollAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_poll_attempts")
	}
}

func TestConfig_ValidateMissingAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing API key")
	}
}
