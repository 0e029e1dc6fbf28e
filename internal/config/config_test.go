package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Fatalf("expected env api key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.TextModel != defaultGeminiTextModel {
		t.Fatalf("expected default text model, got %q", cfg.Gemini.TextModel)
	}
	if cfg.Paths.APIBind != defaultAPIBind {
		t.Fatalf("expected default bind, got %q", cfg.Paths.APIBind)
	}
}

func TestLoadParsesFileAndEnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[gemini]
api_key = "file-key"
text_model = "gemini-test"

[licensing]
licensor = "Example Studio"
permits = ["search", "ai-summarize"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Fatalf("environment override should win, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.TextModel != "gemini-test" {
		t.Fatalf("expected file text model, got %q", cfg.Gemini.TextModel)
	}
	if len(cfg.Licensing.Permits) != 2 {
		t.Fatalf("expected 2 permits, got %v", cfg.Licensing.Permits)
	}
}

func TestLoadRejectsMissingGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")

	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing gemini api key")
	}
	if !strings.Contains(err.Error(), "gemini.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnknownUsageClass(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "k"
	cfg.Licensing.Permits = []string{"mining"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown usage class")
	}
}

func TestValidateWatchRequiresDirAndLicensor(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "k"
	cfg.Watch.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when watch dir missing")
	}
	cfg.Watch.Dir = "/tmp/inbox"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when licensor missing")
	}
	cfg.Licensing.Licensor = "Example Studio"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAuthSecretLength(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "k"
	cfg.Auth.Enabled = true
	cfg.Auth.SessionSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short session secret")
	}
	cfg.Auth.SessionSecret = strings.Repeat("s", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[gemini]") {
		t.Fatal("sample config missing gemini section")
	}
}
