package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath overrides the config location when no --config flag is given. It lets a
// containerized `intervue serve` point at a mounted file without changing its argv.
const EnvConfigPath = "INTERVUE_CONFIG"

// ResolvePath picks the config.jsonc location: flag, then INTERVUE_CONFIG, then
// $XDG_CONFIG_HOME/intervue, then ~/.config/intervue.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if p := strings.TrimSpace(candidate); p != "" {
			return p, nil
		}
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "intervue", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "intervue", "config.jsonc"), nil
}
