package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"lingotool/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Quality.MaxLengthRatio != 2.0 || !cfg.Quality.FailOnError {
		t.Fatalf("unexpected defaults: %+v", cfg.Quality)
	}
	if cfg.Writeback.PackFormat != 15 {
		t.Fatalf("unexpected pack format: %d", cfg.Writeback.PackFormat)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[quality]
min_length_ratio = 0.25
max_length_ratio = 4.0
fail_on_warning = true
max_warnings = 3

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path, got %q exists=%v", resolved, exists)
	}
	if cfg.Quality.MinLengthRatio != 0.25 || !cfg.Quality.FailOnWarning || cfg.Quality.MaxWarnings != 3 {
		t.Fatalf("overrides not applied: %+v", cfg.Quality)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", cfg.Logging.Format)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("data dir not expanded: %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsInvalidRatios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[quality]
min_length_ratio = 2.0
max_length_ratio = 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for inverted ratios")
	}
}

func TestDatabasePathEnvOverride(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "alt", "catalog.db")
	t.Setenv("LINGOTOOL_DB_PATH", override)

	cfg, _, _, err := config.Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabasePath() != override {
		t.Fatalf("expected override %q, got %q", override, cfg.DatabasePath())
	}

	t.Setenv("LINGOTOOL_DB_PATH", "")
	cfg, _, _, err = config.Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(cfg.Paths.DataDir, "catalog.db"); cfg.DatabasePath() != want {
		t.Fatalf("expected default %q, got %q", want, cfg.DatabasePath())
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OverlayDir = filepath.Join(base, "overlays")
	cfg.Paths.BackupDir = filepath.Join(base, "backups")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.OverlayDir, cfg.Paths.BackupDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
