package webhook

import (
	"fmt"
	"time"

	"github.com/mattjoyce/slack-relay/internal/config"
)

// FromGlobalConfig converts the relay configuration to a server Config.
// Parses max_body_size and selects the metrics route when metrics are enabled.
func FromGlobalConfig(cfg *config.Config, version string) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := config.ParseByteSize(cfg.Server.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}

	out := Config{
		Listen:             cfg.Server.Listen,
		WebhookPath:        cfg.Server.WebhookPath,
		InteractionsPath:   cfg.Server.InteractionsPath,
		MaxBodySize:        maxBodySize,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		WebhookSecret:      cfg.Server.WebhookSecret,
		SignatureHeader:    cfg.Server.SignatureHeader,
		SigningSecret:      cfg.Slack.SigningSecret,
		TimestampTolerance: cfg.Slack.TimestampTolerance,
		Version:            version,
	}
	if cfg.MetricsEnabled() {
		out.MetricsPath = cfg.Metrics.Path
	}

	return out, nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.WebhookPath == "" {
		c.WebhookPath = "/v1/webhook"
	}
	if c.InteractionsPath == "" {
		c.InteractionsPath = "/slack/events"
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.SignatureHeader == "" {
		c.SignatureHeader = DefaultSignatureHeader
	}
	if c.TimestampTolerance <= 0 {
		c.TimestampTolerance = DefaultTimestampTolerance
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	return c
}
