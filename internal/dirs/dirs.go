// Package dirs provides standard directory resolution for devup.
// It follows the XDG base directory layout with fallbacks for platforms
// where XDG isn't set up (e.g., macOS).
package dirs

import (
	"os"
	"os/user"
	"path/filepath"
)

// ConfigFileName is the name devup looks for in the workspace root and in
// the user config directory.
const ConfigFileName = "devup.yaml"

// ConfigDir returns the user-level configuration directory.
// Priority: $DEVUP_CONFIG_DIR > $XDG_CONFIG_HOME/devup > ~/.config/devup
func ConfigDir() string {
	if v := os.Getenv("DEVUP_CONFIG_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "devup")
	}
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".config", "devup")
	}
	return ""
}

// FindConfigFile returns the first existing config file, checking the
// workspace root before the user config directory. It returns "" if
// neither exists.
func FindConfigFile(root string) string {
	candidates := []string{filepath.Join(root, ConfigFileName)}
	if dir := ConfigDir(); dir != "" {
		candidates = append(candidates, filepath.Join(dir, ConfigFileName))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}
