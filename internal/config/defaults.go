package config

const (
	defaultDataDir    = "~/.local/share/lingotool"
	defaultLogDir     = "~/.local/share/lingotool/logs"
	defaultOverlayDir = "~/.local/share/lingotool/overlays"
	defaultBackupDir  = "~/.local/share/lingotool/backups"

	defaultMinLengthRatio = 0.5
	defaultMaxLengthRatio = 2.0
	defaultMaxWarnings    = 10

	defaultPackName   = "localization_overlay"
	defaultPackFormat = 15

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			OverlayDir: defaultOverlayDir,
			BackupDir:  defaultBackupDir,
		},
		Quality: Quality{
			MinLengthRatio: defaultMinLengthRatio,
			MaxLengthRatio: defaultMaxLengthRatio,
			FailOnError:    true,
			FailOnWarning:  false,
			MaxWarnings:    defaultMaxWarnings,
		},
		Writeback: Writeback{
			PackName:         defaultPackName,
			PackFormat:       defaultPackFormat,
			VerifyAfterWrite: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
