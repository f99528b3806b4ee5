package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables that override file values when set.
const (
	EnvBotToken      = "SLACK_BOT_TOKEN"
	EnvSigningSecret = "SLACK_SIGNING_SECRET"
	EnvPort          = "PORT"
	EnvLogLevel      = "LOG_LEVEL"
)

// Load reads configuration from configPath, applies environment overrides and
// defaults, verifies integrity, and validates the result.
// An empty configPath means environment-only mode.
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Read is Load without validation. Used by config check so that every problem
// can be reported instead of only the first.
func Read(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		absPath, err := ResolveConfigFile(configPath)
		if err != nil {
			return nil, err
		}

		cfg, err = loadConfigFile(absPath)
		if err != nil {
			return nil, err
		}
		cfg.SourcePath = absPath

		if err := verifyConfigHash(absPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg = applyConfigDefaults(cfg)

	return cfg, nil
}

// ResolveConfigFile turns a file or directory argument into an absolute config file path.
func ResolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadConfigFile loads and parses a single config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)

	checksums, err := LoadChecksums(dir)
	if err != nil {
		// If .checksums is missing, we skip verification.
		return nil
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: slack-relay config lock --config %s", basename, dir, path)
	}

	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: slack-relay config lock --config %s", path, err, path)
	}

	return nil
}

// applyEnvOverrides lets the process environment win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBotToken); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv(EnvSigningSecret); v != "" {
		cfg.Slack.SigningSecret = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Server.Listen = ":" + v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Service.LogLevel = v
	}
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = defaults.Server.WebhookPath
	}
	if cfg.Server.InteractionsPath == "" {
		cfg.Server.InteractionsPath = defaults.Server.InteractionsPath
	}
	if cfg.Server.MaxBodySize == "" {
		cfg.Server.MaxBodySize = defaults.Server.MaxBodySize
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if cfg.Server.SignatureHeader == "" {
		cfg.Server.SignatureHeader = defaults.Server.SignatureHeader
	}

	if cfg.Slack.HTTPTimeout == 0 {
		cfg.Slack.HTTPTimeout = defaults.Slack.HTTPTimeout
	}
	if cfg.Slack.VerifyToken == nil {
		cfg.Slack.VerifyToken = defaults.Slack.VerifyToken
	}
	if cfg.Slack.TimestampTolerance == 0 {
		cfg.Slack.TimestampTolerance = defaults.Slack.TimestampTolerance
	}

	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = defaults.Metrics.Enabled
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaults.Metrics.Path
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// UnresolvedEnvVar returns the name of the first ${VAR} placeholder left in s.
func UnresolvedEnvVar(s string) (string, bool) {
	matches := envVarPattern.FindStringSubmatch(s)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if err := requireSecret("slack.bot_token", cfg.Slack.BotToken, EnvBotToken); err != nil {
		return err
	}
	if err := requireSecret("slack.signing_secret", cfg.Slack.SigningSecret, EnvSigningSecret); err != nil {
		return err
	}
	if name, ok := UnresolvedEnvVar(cfg.Server.WebhookSecret); ok {
		return fmt.Errorf("server.webhook_secret: environment variable ${%s} is not set", name)
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen %q is not a valid host:port: %w", cfg.Server.Listen, err)
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		return fmt.Errorf("server.webhook_path must start with / (got %q)", cfg.Server.WebhookPath)
	}
	if !strings.HasPrefix(cfg.Server.InteractionsPath, "/") {
		return fmt.Errorf("server.interactions_path must start with / (got %q)", cfg.Server.InteractionsPath)
	}
	if cfg.Server.WebhookPath == cfg.Server.InteractionsPath {
		return fmt.Errorf("server.webhook_path and server.interactions_path must differ (both %q)", cfg.Server.WebhookPath)
	}
	if _, err := ParseByteSize(cfg.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	if cfg.Slack.HTTPTimeout < 0 {
		return fmt.Errorf("slack.http_timeout must not be negative")
	}
	if cfg.Slack.TimestampTolerance <= 0 {
		return fmt.Errorf("slack.timestamp_tolerance must be positive")
	}

	if cfg.MetricsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", cfg.Metrics.Path)
	}

	return nil
}

func requireSecret(field, value, envName string) error {
	if value == "" {
		return fmt.Errorf("%s is required (set %s)", field, envName)
	}
	if name, ok := UnresolvedEnvVar(value); ok {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, name)
	}
	return nil
}
