package usage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDirEnvVar      = "SCREEN_USAGE_MONITOR_HOME"
	defaultDataDirName = ".screen-usage-monitor"
)

// DataDir is where the monitor keeps its config and log file.
func DataDir() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv(dataDirEnvVar)); explicit != "" {
		return expandPath(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultDataDirName), nil
}

func EnsureMonitorDataDir() error {
	dir, err := DataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// ExpandPath resolves a leading "~" against the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
