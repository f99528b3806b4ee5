package config

import "time"

// Config represents the complete slack-relay configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	Slack   SlackConfig   `yaml:"slack"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`

	// SourcePath is the file the config was loaded from ("" when running on env only).
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// PIDFile enables a single-instance lock when set.
	PIDFile string `yaml:"pid_file,omitempty"`
}

// ServerConfig defines the HTTP listener and its routes.
type ServerConfig struct {
	Listen           string        `yaml:"listen"`
	WebhookPath      string        `yaml:"webhook_path"`
	InteractionsPath string        `yaml:"interactions_path"`
	MaxBodySize      string        `yaml:"max_body_size"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	// WebhookSecret enables HMAC-SHA256 verification of the notification webhook.
	// Empty means the route trusts its callers.
	WebhookSecret   string `yaml:"webhook_secret,omitempty"`
	SignatureHeader string `yaml:"signature_header"`
}

// SlackConfig defines Slack credentials and client settings.
type SlackConfig struct {
	BotToken           string        `yaml:"bot_token"`
	SigningSecret      string        `yaml:"signing_secret"`
	APIURL             string        `yaml:"api_url,omitempty"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	VerifyToken        *bool         `yaml:"verify_token,omitempty"`
	TimestampTolerance time.Duration `yaml:"timestamp_tolerance"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
}

// TracingConfig enables an in-process OpenTelemetry provider. Finished spans
// are written to the log at DEBUG.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultPort is used when neither PORT nor server.listen is set.
const DefaultPort = "6000"

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "slack-relay",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:           ":" + DefaultPort,
			WebhookPath:      "/v1/webhook",
			InteractionsPath: "/slack/events",
			MaxBodySize:      "1MB",
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     60 * time.Second,
			SignatureHeader:  "X-Signature-256",
		},
		Slack: SlackConfig{
			HTTPTimeout:        30 * time.Second,
			VerifyToken:        boolPtr(true),
			TimestampTolerance: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: boolPtr(true),
			Path:    "/metrics",
		},
	}
}

// ShouldVerifyToken reports whether auth.test runs at startup.
func (c *Config) ShouldVerifyToken() bool {
	return c.Slack.VerifyToken == nil || *c.Slack.VerifyToken
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

func boolPtr(b bool) *bool { return &b }
