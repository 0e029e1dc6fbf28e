package config

const (
	defaultDataDir                = "~/.local/share/artiquity"
	defaultLogDir                 = "~/.local/share/artiquity/logs"
	defaultAPIBind                = "127.0.0.1:8961"
	defaultGeminiBaseURL          = "https://generativelanguage.googleapis.com"
	defaultGeminiTextModel        = "gemini-2.5-flash"
	defaultGeminiImageModel       = "gemini-2.5-flash-image"
	defaultGeminiTimeoutSeconds   = 120
	defaultFALBaseURL             = "https://fal.run"
	defaultFALModel               = "fal-ai/flux/schnell"
	defaultFALTimeoutSeconds      = 120
	defaultPerplexityBaseURL      = "https://api.perplexity.ai/chat/completions"
	defaultPerplexityModel        = "sonar"
	defaultPerplexityTimeout      = 60
	defaultSessionTTLHours        = 72
	defaultLicensingStandardURL   = "https://rslstandard.org/rsl"
	defaultWatchSettleSeconds     = 3
	defaultNotifyRequestTimeout   = 10
	defaultImageConcurrency       = 3
	defaultShutdownTimeoutSeconds = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			TextModel:      defaultGeminiTextModel,
			ImageModel:     defaultGeminiImageModel,
			TimeoutSeconds: defaultGeminiTimeoutSeconds,
		},
		FAL: FAL{
			Enabled:        false,
			BaseURL:        defaultFALBaseURL,
			Model:          defaultFALModel,
			TimeoutSeconds: defaultFALTimeoutSeconds,
		},
		Perplexity: Perplexity{
			Enabled:        false,
			BaseURL:        defaultPerplexityBaseURL,
			Model:          defaultPerplexityModel,
			TimeoutSeconds: defaultPerplexityTimeout,
		},
		Auth: Auth{
			Enabled:         false,
			SessionTTLHours: defaultSessionTTLHours,
		},
		Licensing: Licensing{
			StandardURL:     defaultLicensingStandardURL,
			Permits:         []string{"search"},
			Prohibits:       []string{"train-ai", "train-genai"},
			SidecarFallback: true,
		},
		Watch: Watch{
			Enabled:       false,
			SettleSeconds: defaultWatchSettleSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Campaign:       true,
			License:        true,
			Watch:          true,
			Errors:         true,
		},
		Workflow: Workflow{
			ImageConcurrency:       defaultImageConcurrency,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
