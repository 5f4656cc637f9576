package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tidy/internal/client"
	"tidy/internal/config"
)

type commandContext struct {
	bindFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(bindFlag, configFlag *string) *commandContext {
	return &commandContext{
		bindFlag:   bindFlag,
		configFlag: configFlag,
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
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) bindAddress() string {
	if c.bindFlag != nil && strings.TrimSpace(*c.bindFlag) != "" {
		return strings.TrimSpace(*c.bindFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	cl, err := client.New(c.bindAddress())
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	if err := fn(cl); err != nil {
		if client.IsUnavailable(err) {
			return fmt.Errorf("daemon at %s is not reachable; start it with `tidyd`", c.bindAddress())
		}
		return err
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
