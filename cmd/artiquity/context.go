package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"artiquity/internal/api"
	"artiquity/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// serverAddress resolves the daemon address from the flag, the environment,
// then the configured API bind.
func (c *commandContext) serverAddress() string {
	if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
		return strings.TrimSpace(*c.serverFlag)
	}
	if addr := strings.TrimSpace(os.Getenv("ARTIQUITY_SERVER")); addr != "" {
		return addr
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return config.Default().Paths.APIBind
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag)
	}
	return strings.TrimSpace(os.Getenv("ARTIQUITY_TOKEN"))
}

func (c *commandContext) client() *api.Client {
	opts := []api.ClientOption{}
	if token := c.token(); token != "" {
		opts = append(opts, api.WithToken(token))
	}
	return api.NewClient(c.serverAddress(), opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
