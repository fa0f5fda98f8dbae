// Package config loads application, tenant, classifier and file-type configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default locations, before ExpandPath.
const (
	DefaultConfigDir    = "$HOME/.config/spice"
	DefaultDatabasePath = "$HOME/.local/share/spice/spice.db"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// ResolvePath expands path, falling back to def when path is empty.
func ResolvePath(path, def string) string {
	if strings.TrimSpace(path) == "" {
		path = def
	}
	return ExpandPath(path)
}
