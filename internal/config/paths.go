package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/webstorage/storectl/internal/constants"
)

// ConfigDirectory returns the per-user directory holding the config file,
// the session store and logs.
//   - Windows: %APPDATA%\storectl
//   - Unix: ~/.config/storectl
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName)
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, constants.AppName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.AppName)
	}
	return filepath.Join(home, ".config", constants.AppName)
}

// DefaultConfigPath returns the default INI config location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}

// DefaultSessionStorePath returns the default session store location.
func DefaultSessionStorePath() string {
	return filepath.Join(ConfigDirectory(), "session.json")
}

// LogDirectory returns the directory used for the rotating log file.
func LogDirectory() string {
	return filepath.Join(ConfigDirectory(), "logs")
}
