package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("LITELLM_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("LITELLM_API_KEY", "")

		cfg := &Config{
			LLM: LLMConfig{Provider: "custom"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "custom", cfg.LLM.Provider)
	})

	t.Run("LITELLM_API_KEY overrides provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("LITELLM_API_KEY", "ll-key")

		cfg := &Config{
			LLM: LLMConfig{Provider: "openai"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "ll-key", cfg.LLM.APIKey)
		assert.Equal(t, "litellm", cfg.LLM.Provider)
	})

	t.Run("Precedence: LITELLM overrides OPENAI", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("LITELLM_API_KEY", "ll-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "ll-key", cfg.LLM.APIKey)
		assert.Equal(t, "litellm", cfg.LLM.Provider)
	})

	t.Run("LITELLM_BASE_URL overrides endpoint", func(t *testing.T) {
		t.Setenv("LITELLM_BASE_URL", "http://proxy:4000/v1")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://proxy:4000/v1", cfg.LLM.BaseURL)
	})
}

func TestEnvOverrides_Designer(t *testing.T) {
	t.Setenv("DATA_DESIGNER_URL", "http://designer:8080")
	t.Setenv("DATA_DESIGNER_PROJECT", "custom-project")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://designer:8080", cfg.Designer.BaseURL)
	assert.Equal(t, "custom-project", cfg.Designer.Project)
}

func TestEnvOverrides_Store(t *testing.T) {
	t.Run("SESSION_BUCKET flips backend to s3", func(t *testing.T) {
		t.Setenv("SESSION_BUCKET", "my-sessions")
		t.Setenv("AWS_REGION", "us-west-2")

		cfg := &Config{Store: StoreConfig{Backend: "file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "s3", cfg.Store.Backend)
		assert.Equal(t, "my-sessions", cfg.Store.Bucket)
		assert.Equal(t, "us-west-2", cfg.Store.Region)
	})

	t.Run("no bucket leaves backend untouched", func(t *testing.T) {
		t.Setenv("SESSION_BUCKET", "")

		cfg := &Config{Store: StoreConfig{Backend: "file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "file", cfg.Store.Backend)
	})
}

func TestEnvOverrides_Dataset(t *testing.T) {
	t.Setenv("DESIGNER_DB", "/tmp/sets.duckdb")
	t.Setenv("DESIGNER_OUTPUT_DIR", "/tmp/out")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/sets.duckdb", cfg.Dataset.DatabasePath)
	assert.Equal(t, "/tmp/out", cfg.Dataset.OutputDir)
}
