package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Gemini contains configuration for the Google Gemini API.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TextModel      string `toml:"text_model"`
	ImageModel     string `toml:"image_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FAL contains configuration for the FAL image generation API.
type FAL struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Perplexity contains configuration for web-grounded trend research.
type Perplexity struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Auth contains API authentication settings. When disabled the API is open,
// which is only sensible for single-operator localhost deployments.
type Auth struct {
	Enabled         bool   `toml:"enabled"`
	SessionSecret   string `toml:"session_secret"`
	SessionTTLHours int    `toml:"session_ttl_hours"`
}

// Licensing contains defaults applied to RSL payloads when the caller does
// not supply them.
type Licensing struct {
	Licensor        string   `toml:"licensor"`
	ServerURL       string   `toml:"server_url"`
	StandardURL     string   `toml:"standard_url"`
	Permits         []string `toml:"permits"`
	Prohibits       []string `toml:"prohibits"`
	SidecarFallback bool     `toml:"sidecar_fallback"`
}

// Watch contains configuration for the drop-folder auto-licensing watcher.
type Watch struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	SettleSeconds int    `toml:"settle_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Campaign       bool   `toml:"campaign"`
	License        bool   `toml:"license"`
	Watch          bool   `toml:"watch"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains generation tuning knobs.
type Workflow struct {
	ImageConcurrency       int `toml:"image_concurrency"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Artiquity.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Gemini: text and image generation models
//   - FAL: hosted image generation (optional, Gemini fallback)
//   - Perplexity: web-grounded trend research (optional)
//   - Auth: API session settings
//   - Licensing: RSL payload defaults
//   - Watch: drop-folder auto-licensing
//   - Notifications: ntfy push notification settings
//   - Workflow: generation concurrency and shutdown timing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gemini        Gemini        `toml:"gemini"`
	FAL           FAL           `toml:"fal"`
	Perplexity    Perplexity    `toml:"perplexity"`
	Auth          Auth          `toml:"auth"`
	Licensing     Licensing     `toml:"licensing"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// envOverrides captures secrets supplied through the environment. Values set
// here win over the config file so keys can stay out of dotfiles.
type envOverrides struct {
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	FALAPIKey        string `env:"FAL_API_KEY"`
	PerplexityAPIKey string `env:"PERPLEXITY_API_KEY"`
	SessionSecret    string `env:"ARTIQUITY_SESSION_SECRET"`
	NtfyTopic        string `env:"ARTIQUITY_NTFY_TOPIC"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/artiquity/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized, with environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}
	if overrides.GeminiAPIKey != "" {
		c.Gemini.APIKey = overrides.GeminiAPIKey
	}
	if overrides.FALAPIKey != "" {
		c.FAL.APIKey = overrides.FALAPIKey
	}
	if overrides.PerplexityAPIKey != "" {
		c.Perplexity.APIKey = overrides.PerplexityAPIKey
	}
	if overrides.SessionSecret != "" {
		c.Auth.SessionSecret = overrides.SessionSecret
	}
	if overrides.NtfyTopic != "" {
		c.Notifications.NtfyTopic = overrides.NtfyTopic
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("artiquity.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Watch.Enabled && strings.TrimSpace(c.Watch.Dir) != "" {
		dirs = append(dirs, c.Watch.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "artiquity.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
