package main

import (
	"strings"
	"sync"

	"github.com/SteelMorgan/logscan/internal/config"
	"github.com/SteelMorgan/logscan/internal/observability"
)

type commandContext struct {
	jobsFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	closeLog func() error
}

func newCommandContext(jobsFlag *string) *commandContext {
	return &commandContext{
		jobsFlag: jobsFlag,
		closeLog: func() error { return nil },
	}
}

// ensureConfig loads the environment configuration and initializes logging once
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.jobsFlag != nil {
			if path := strings.TrimSpace(*c.jobsFlag); path != "" {
				cfg.JobsFile = path
			}
		}
		c.closeLog = observability.InitLogger(cfg.LogLevel, cfg.LogFile)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) close() error {
	return c.closeLog()
}
