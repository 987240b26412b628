package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
	logLevel = LevelInfo
}

// TestCategoriesLog tests that categories create log files when debug_mode is true
func TestCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".designer")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"session": true,
				"store": true,
				"schema": true,
				"api": true,
				"llm": true,
				"tools": true,
				"agent": true,
				"poller": true,
				"dataset": true
			}
		}
	}`

	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategorySession, CategoryStore, CategorySchema,
		CategoryAPI, CategoryLLM, CategoryTools, CategoryAgent,
		CategoryPoller, CategoryDataset,
	}

	for _, cat := range categories {
		Get(cat).Info("test message for %s", cat)
	}
	CloseAll()

	files, err := os.ReadDir(filepath.Join(tempDir, ".designer", "logs"))
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	found := make(map[string]bool)
	for _, f := range files {
		for _, cat := range categories {
			if strings.Contains(f.Name(), "_"+string(cat)+".log") {
				found[string(cat)] = true
			}
		}
	}

	for _, cat := range categories {
		if !found[string(cat)] {
			t.Errorf("No log file created for category %s", cat)
		}
	}
}

// TestNoLogsWithoutDebugMode tests that no logs are created when debug_mode is false
func TestNoLogsWithoutDebugMode(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_nodebug")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".designer")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{"logging": {"level": "info", "debug_mode": false}}`
	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}

	Session("this should go nowhere")
	Store("neither should this")

	if _, err := os.Stat(filepath.Join(tempDir, ".designer", "logs")); !os.IsNotExist(err) {
		t.Error("Logs directory should not exist when debug_mode is false")
	}
}

// TestMissingConfigIsSilent tests that a missing config file means no logging
func TestMissingConfigIsSilent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_noconfig")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize should not fail on missing config: %v", err)
	}

	if IsDebugMode() {
		t.Error("Missing config should default to debug mode off")
	}
}

// TestDisabledCategory tests that disabled categories produce no-op loggers
func TestDisabledCategory(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_disabled")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".designer")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {"poller": false}
		}
	}`
	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsCategoryEnabled(CategoryPoller) {
		t.Error("poller category should be disabled")
	}
	if !IsCategoryEnabled(CategoryAgent) {
		t.Error("agent category should default to enabled")
	}

	l := Get(CategoryPoller)
	if l.logger != nil {
		t.Error("Disabled category should return a no-op logger")
	}
}

// TestTimer verifies timers report elapsed durations
func TestTimer(t *testing.T) {
	resetState()
	defer resetState()

	timer := StartTimer(CategoryAPI, "test operation")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Errorf("Expected non-negative elapsed time, got %v", elapsed)
	}
}
