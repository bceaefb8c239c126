package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateWriteback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.OverlayDir == "" {
		return errors.New("paths.overlay_dir must be set")
	}
	if c.Paths.BackupDir == "" {
		return errors.New("paths.backup_dir must be set")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.MinLengthRatio <= 0 {
		return errors.New("quality.min_length_ratio must be positive")
	}
	if c.Quality.MaxLengthRatio < c.Quality.MinLengthRatio {
		return errors.New("quality.max_length_ratio must be >= quality.min_length_ratio")
	}
	if c.Quality.MaxWarnings < 0 {
		return errors.New("quality.max_warnings must be >= 0")
	}
	return nil
}

func (c *Config) validateWriteback() error {
	if c.Writeback.PackName == "" {
		return errors.New("writeback.pack_name must be set")
	}
	if c.Writeback.PackFormat <= 0 {
		return errors.New("writeback.pack_format must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
