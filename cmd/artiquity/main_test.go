package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"artiquity/internal/api"
	"artiquity/internal/config"
)

// writeTestConfig persists a minimal valid configuration rooted in a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Gemini.APIKey = "test"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite should succeed: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfgPath := writeTestConfig(t)

	output, err := executeCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(output, "(set)") {
		t.Fatalf("expected redacted secret marker: %q", output)
	}
	if strings.Contains(output, `"test"`) {
		t.Fatalf("api key leaked into output: %q", output)
	}
}

func TestProjectListRendersTable(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.ProjectListResponse{Projects: []api.Project{
			{ID: "p-1", BrandName: "Aurora Atelier", Status: "capsule_ready"},
			{ID: "p-2", BrandName: "Novel Grounds", Status: "draft"},
		}})
	}))
	defer srv.Close()

	output, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "project", "list")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	for _, want := range []string{"Aurora Atelier", "Novel Grounds", "capsule_ready"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestProjectListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ProjectListResponse{})
	}))
	defer srv.Close()

	output, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "project", "list")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	if !strings.Contains(output, "No projects yet") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestTokenFlagReachesDaemon(t *testing.T) {
	cfgPath := writeTestConfig(t)
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(api.AuthResponse{User: api.User{ID: 7, Email: "kit@example.com"}})
	}))
	defer srv.Close()

	output, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "--token", "tok-123", "auth", "whoami")
	if err != nil {
		t.Fatalf("auth whoami: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !strings.Contains(output, "kit@example.com") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestWizardStepSurfacesConflict(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "generate the identity capsule first"})
	}))
	defer srv.Close()

	_, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "project", "dashboard", "p-1")
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "generate the identity capsule first") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLicenseEmbedVerifyExtractLocal(t *testing.T) {
	cfgPath := writeTestConfig(t)
	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(path, minimalJPEG(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	output, err := executeCommand(t,
		"--config", cfgPath,
		"license", "embed", "--no-record", "--license", `{"licensor":"Aurora Atelier"}`, path,
	)
	if err != nil {
		t.Fatalf("license embed: %v", err)
	}
	if !strings.Contains(output, "embedded") {
		t.Fatalf("unexpected output: %q", output)
	}

	output, err = executeCommand(t, "--config", cfgPath, "license", "verify", path)
	if err != nil {
		t.Fatalf("license verify: %v", err)
	}
	if !strings.Contains(output, "Valid license") || !strings.Contains(output, "Aurora Atelier") {
		t.Fatalf("unexpected output: %q", output)
	}

	output, err = executeCommand(t, "--config", cfgPath, "license", "extract", path)
	if err != nil {
		t.Fatalf("license extract: %v", err)
	}
	if !strings.Contains(output, "Aurora Atelier") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLicenseVerifyRejectsUnlicensedFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(path, minimalJPEG(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	output, err := executeCommand(t, "--config", cfgPath, "license", "verify", path)
	if err == nil {
		t.Fatal("expected verification failure")
	}
	if !strings.Contains(output, "Invalid") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestStatusRendersSummary(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ServerStatus{
			Running:      true,
			PID:          4242,
			DatabasePath: "/tmp/artiquity.db",
			Summary: api.Summary{
				Projects: 3,
				ByStatus: map[string]int{"draft": 1, "completed": 2},
			},
		})
	}))
	defer srv.Close()

	output, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"4242", "draft", "completed"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestHealthReportsFailure(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(api.HealthResponse{
			Healthy:  false,
			Services: map[string]string{"gemini": "ok", "perplexity": "request failed"},
		})
	}))
	defer srv.Close()

	output, err := executeCommand(t, "--config", cfgPath, "--server", srv.URL, "health")
	if err == nil {
		t.Fatal("expected unhealthy error")
	}
	if !strings.Contains(output, "perplexity") {
		t.Fatalf("output missing service table: %q", output)
	}
}

// minimalJPEG returns SOI + APP0 + a tiny scan + EOI.
func minimalJPEG() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write([]byte{0xFF, 0xE0, 0x00, 0x10})
	buf.Write([]byte("JFIF\x00"))
	buf.Write(bytes.Repeat([]byte{0x00}, 9))
	buf.Write([]byte{0xFF, 0xDA, 0x00, 0x02})
	buf.Write([]byte{0x01, 0x02, 0x03})
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}
