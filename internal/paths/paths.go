// Package paths resolves the on-disk locations unitymcp reads and writes:
// the per-user home for logs and the per-project config directory.
package paths

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	// HomeEnvVar overrides the per-user data directory.
	HomeEnvVar = "UNITY_MCP_HOME"

	// DefaultHome is the directory under the user's home used when HomeEnvVar is unset.
	DefaultHome = ".unitymcp"

	// LogsSubdir holds rotating log files.
	LogsSubdir = "logs"

	// ProjectConfigDir is created inside a Unity project by `config init`.
	ProjectConfigDir = ".unitymcp"

	// ConfigFileName is the default config file inside ProjectConfigDir.
	ConfigFileName = "config.json"
)

// ErrNoProjectRoot is returned when no Unity project is found above a directory.
var ErrNoProjectRoot = errors.New("no Unity project found")

// GetHome returns the per-user data directory.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, DefaultHome), nil
}

// GetLogsDir returns the directory for log files.
func GetLogsDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, LogsSubdir), nil
}

// EnsureLogsDir creates the logs directory if needed and returns it.
func EnsureLogsDir() (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetLogPath returns the log file for a subsystem, e.g. "mcp" -> logs/mcp.log.
func GetLogPath(subsystem string) (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, subsystem+".log"), nil
}

// GetProjectConfigPath returns <projectRoot>/.unitymcp/config.json.
func GetProjectConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ProjectConfigDir, ConfigFileName)
}

// IsUnityProject reports whether dir looks like a Unity project root
// (it has both Assets/ and ProjectSettings/).
func IsUnityProject(dir string) bool {
	for _, sub := range []string{"Assets", "ProjectSettings"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// FindProjectRoot walks up from start until it finds a Unity project or a
// directory that already holds a .unitymcp config directory.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if IsUnityProject(dir) {
			return dir, nil
		}
		if info, err := os.Stat(filepath.Join(dir, ProjectConfigDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}
