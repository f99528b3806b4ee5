package config

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNoConfig is returned by DiscoverConfigPath when no config file exists.
// The relay then runs on defaults and environment variables alone.
var ErrNoConfig = errors.New("no config file found (checked: $SLACK_RELAY_CONFIG, ~/.config/slack-relay, /etc/slack-relay, ./config.yaml)")

// EnvConfigPath names the environment variable that points at a config file or directory.
const EnvConfigPath = "SLACK_RELAY_CONFIG"

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $SLACK_RELAY_CONFIG, ~/.config/slack-relay, /etc/slack-relay, ./config.yaml
func DiscoverConfigPath() (string, error) {
	// 1. Check environment variable
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	// 2. Check user config directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "slack-relay", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	// 3. Check system config directory
	systemConfig := "/etc/slack-relay/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	// 4. Fallback to config.yaml in current directory
	localConfig := "./config.yaml"
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	return "", ErrNoConfig
}
