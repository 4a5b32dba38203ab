package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns a list of default configuration paths for the
// current operating system, based on standard conventions for storing
// application configuration files.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "pcmbridge"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "pcmbridge"),
			exeDir,
			homeDir,
		}
	}

	return configPaths, nil
}
