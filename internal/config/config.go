package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	OverlayDir string `toml:"overlay_dir"`
	BackupDir  string `toml:"backup_dir"`
}

// Quality contains thresholds for the quality gate.
type Quality struct {
	MinLengthRatio float64 `toml:"min_length_ratio"`
	MaxLengthRatio float64 `toml:"max_length_ratio"`
	FailOnError    bool    `toml:"fail_on_error"`
	FailOnWarning  bool    `toml:"fail_on_warning"`
	MaxWarnings    int     `toml:"max_warnings"`
}

// Writeback contains configuration for overlay generation and apply runs.
type Writeback struct {
	PackName         string `toml:"pack_name"`
	PackFormat       int    `toml:"pack_format"`
	VerifyAfterWrite bool   `toml:"verify_after_write"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lingotool.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Quality   Quality   `toml:"quality"`
	Writeback Writeback `toml:"writeback"`
	Logging   Logging   `toml:"logging"`

	// databasePath is the resolved LINGOTOOL_DB_PATH override, if any.
	databasePath string
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lingotool/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. A missing file yields defaults.
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

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// DatabasePath returns the catalog database location: the LINGOTOOL_DB_PATH
// override when set, otherwise catalog.db under the data dir.
func (c *Config) DatabasePath() string {
	if c.databasePath != "" {
		return c.databasePath
	}
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// EnsureDirectories creates every configured directory that does not exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.OverlayDir, c.Paths.BackupDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OverlayDir, err = expandPath(c.Paths.OverlayDir); err != nil {
		return fmt.Errorf("paths.overlay_dir: %w", err)
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if value, ok := os.LookupEnv("LINGOTOOL_DB_PATH"); ok && strings.TrimSpace(value) != "" {
		if c.databasePath, err = expandPath(value); err != nil {
			return fmt.Errorf("LINGOTOOL_DB_PATH: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		var err error
		candidate, err = DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
	} else {
		var err error
		candidate, err = expandPath(candidate)
		if err != nil {
			return "", false, err
		}
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if os.IsNotExist(err) {
			return candidate, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", candidate)
	}
	return candidate, true, nil
}

// ExpandPath resolves ~ and relative segments in a user-supplied path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
