package main

import (
	"log/slog"
	"strings"
	"sync"

	"lingotool/internal/catalog"
	"lingotool/internal/config"
	"lingotool/internal/logging"
	"lingotool/internal/patch"
	"lingotool/internal/quality"
	"lingotool/internal/writeback"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	storeOnce sync.Once
	store     *catalog.Store
	storeErr  error

	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

func (c *commandContext) ensureStore() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.storeOnce.Do(func() {
		c.store, c.storeErr = catalog.Open(cfg)
	})
	return c.store, c.storeErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		c.logger = logging.NewNop()
		return c.logger
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		logger = logging.NewNop()
	}
	c.logger = logger
	return c.logger
}

func (c *commandContext) patchService() (*patch.Service, error) {
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return patch.NewService(store, quality.NewGate(cfg), c.ensureLogger()), nil
}

func (c *commandContext) executor() (*writeback.Executor, error) {
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	patches, err := c.patchService()
	if err != nil {
		return nil, err
	}
	return writeback.NewExecutor(store, patches, cfg, c.ensureLogger()), nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}
