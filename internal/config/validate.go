package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var validUsageClasses = map[string]struct{}{
	"all":          {},
	"train-ai":     {},
	"train-genai":  {},
	"ai-use":       {},
	"ai-summarize": {},
	"search":       {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateFAL(); err != nil {
		return err
	}
	if err := c.validatePerplexity(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateLicensing(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateBind(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/artiquity/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'artiquity config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateFAL() error {
	if !c.FAL.Enabled {
		return nil
	}
	if c.FAL.APIKey == "" {
		return errors.New("fal.api_key must be set when fal.enabled is true")
	}
	return nil
}

func (c *Config) validatePerplexity() error {
	if !c.Perplexity.Enabled {
		return nil
	}
	if c.Perplexity.APIKey == "" {
		return errors.New("perplexity.api_key must be set when perplexity.enabled is true")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}
	if c.Auth.SessionSecret == "" {
		return errors.New("auth.session_secret must be set when auth.enabled is true (or via ARTIQUITY_SESSION_SECRET)")
	}
	if len(c.Auth.SessionSecret) < 32 {
		return errors.New("auth.session_secret must be at least 32 characters")
	}
	return nil
}

func (c *Config) validateLicensing() error {
	for _, class := range c.Licensing.Permits {
		if _, ok := validUsageClasses[class]; !ok {
			return fmt.Errorf("licensing.permits: unknown usage class %q", class)
		}
	}
	for _, class := range c.Licensing.Prohibits {
		if _, ok := validUsageClasses[class]; !ok {
			return fmt.Errorf("licensing.prohibits: unknown usage class %q", class)
		}
	}
	return nil
}

func (c *Config) validateWatch() error {
	if !c.Watch.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Watch.Dir) == "" {
		return errors.New("watch.dir must be set when watch.enabled is true")
	}
	if c.Licensing.Licensor == "" {
		return errors.New("licensing.licensor must be set when watch.enabled is true")
	}
	return nil
}

func (c *Config) validateBind() error {
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
