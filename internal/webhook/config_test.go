package webhook

import (
	"testing"

	"github.com/mattjoyce/slack-relay/internal/config"
)

func TestFromGlobalConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.MaxBodySize = "512KB"
	cfg.Server.WebhookSecret = "hook"
	cfg.Slack.SigningSecret = "sign"

	got, err := FromGlobalConfig(cfg, "1.2.3")
	if err != nil {
		t.Fatalf("FromGlobalConfig() error = %v", err)
	}

	if got.MaxBodySize != 512*1024 {
		t.Errorf("MaxBodySize = %d, want %d", got.MaxBodySize, 512*1024)
	}
	if got.WebhookSecret != "hook" || got.SigningSecret != "sign" {
		t.Errorf("secrets not carried over: %+v", got)
	}
	if got.MetricsPath != "/metrics" {
		t.Errorf("MetricsPath = %q, want /metrics", got.MetricsPath)
	}
	if got.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", got.Version)
	}
}

func TestFromGlobalConfig_MetricsDisabled(t *testing.T) {
	cfg := config.Defaults()
	disabled := false
	cfg.Metrics.Enabled = &disabled

	got, err := FromGlobalConfig(cfg, "")
	if err != nil {
		t.Fatalf("FromGlobalConfig() error = %v", err)
	}
	if got.MetricsPath != "" {
		t.Errorf("MetricsPath = %q, want empty", got.MetricsPath)
	}
}

func TestFromGlobalConfig_Errors(t *testing.T) {
	if _, err := FromGlobalConfig(nil, ""); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := config.Defaults()
	cfg.Server.MaxBodySize = "lots"
	if _, err := FromGlobalConfig(cfg, ""); err == nil {
		t.Error("expected error for invalid max_body_size")
	}
}
