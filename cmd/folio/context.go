package main

import (
	"fmt"

	"folio/internal/config"
)

// commandContext carries the persistent flags and the lazily loaded
// configuration shared by all subcommands.
type commandContext struct {
	configPath string
	jsonOutput bool

	cfg        *config.Config
	cfgPath    string
	cfgExisted bool
}

// ensureConfig loads the configuration once and caches it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, existed, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.cfgPath = path
	c.cfgExisted = existed
	return cfg, nil
}
