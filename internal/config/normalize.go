package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeFAL()
	c.normalizePerplexity()
	c.normalizeAuth()
	c.normalizeLicensing()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.TextModel = strings.TrimSpace(c.Gemini.TextModel)
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = defaultGeminiTextModel
	}
	c.Gemini.ImageModel = strings.TrimSpace(c.Gemini.ImageModel)
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = defaultGeminiImageModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeoutSeconds
	}
}

func (c *Config) normalizeFAL() {
	c.FAL.APIKey = strings.TrimSpace(c.FAL.APIKey)
	c.FAL.BaseURL = strings.TrimRight(strings.TrimSpace(c.FAL.BaseURL), "/")
	if c.FAL.BaseURL == "" {
		c.FAL.BaseURL = defaultFALBaseURL
	}
	c.FAL.Model = strings.TrimSpace(c.FAL.Model)
	if c.FAL.Model == "" {
		c.FAL.Model = defaultFALModel
	}
	if c.FAL.TimeoutSeconds <= 0 {
		c.FAL.TimeoutSeconds = defaultFALTimeoutSeconds
	}
}

func (c *Config) normalizePerplexity() {
	c.Perplexity.APIKey = strings.TrimSpace(c.Perplexity.APIKey)
	c.Perplexity.BaseURL = strings.TrimSpace(c.Perplexity.BaseURL)
	if c.Perplexity.BaseURL == "" {
		c.Perplexity.BaseURL = defaultPerplexityBaseURL
	}
	c.Perplexity.Model = strings.TrimSpace(c.Perplexity.Model)
	if c.Perplexity.Model == "" {
		c.Perplexity.Model = defaultPerplexityModel
	}
	if c.Perplexity.TimeoutSeconds <= 0 {
		c.Perplexity.TimeoutSeconds = defaultPerplexityTimeout
	}
}

func (c *Config) normalizeAuth() {
	c.Auth.SessionSecret = strings.TrimSpace(c.Auth.SessionSecret)
	if c.Auth.SessionTTLHours <= 0 {
		c.Auth.SessionTTLHours = defaultSessionTTLHours
	}
}

func (c *Config) normalizeLicensing() {
	c.Licensing.Licensor = strings.TrimSpace(c.Licensing.Licensor)
	c.Licensing.ServerURL = strings.TrimSpace(c.Licensing.ServerURL)
	c.Licensing.StandardURL = strings.TrimSpace(c.Licensing.StandardURL)
	if c.Licensing.StandardURL == "" {
		c.Licensing.StandardURL = defaultLicensingStandardURL
	}
	c.Licensing.Permits = trimAll(c.Licensing.Permits)
	c.Licensing.Prohibits = trimAll(c.Licensing.Prohibits)
}

func (c *Config) normalizeWatch() error {
	c.Watch.Dir = strings.TrimSpace(c.Watch.Dir)
	if c.Watch.Dir != "" {
		expanded, err := expandPath(c.Watch.Dir)
		if err != nil {
			return fmt.Errorf("watch.dir: %w", err)
		}
		c.Watch.Dir = expanded
	}
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSeconds
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ImageConcurrency <= 0 {
		c.Workflow.ImageConcurrency = defaultImageConcurrency
	}
	if c.Workflow.ShutdownTimeoutSeconds <= 0 {
		c.Workflow.ShutdownTimeoutSeconds = defaultShutdownTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
