// Package doctor validates slack-relay configuration and reports every
// problem at once, unlike config.Load which stops at the first.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mattjoyce/slack-relay/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration read with config.Read.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateSlackCredentials(r)
	d.validateServer(r)
	d.validateMetrics(r)
	d.warnWebhookExposure(r)
	d.warnSuspiciousTimeouts(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateServiceConfig checks logging settings.
func (d *Doctor) validateServiceConfig(r *Result) {
	switch strings.ToLower(d.cfg.Service.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("log_level %q must be one of debug, info, warn, error", d.cfg.Service.LogLevel))
	}
	if f := d.cfg.Service.LogFormat; f != "json" && f != "text" {
		d.addError(r, "service", "service.log_format",
			fmt.Sprintf("log_format %q must be json or text", f))
	}
}

// validateSlackCredentials checks the bot token and signing secret.
func (d *Doctor) validateSlackCredentials(r *Result) {
	d.requireSecret(r, "slack.bot_token", d.cfg.Slack.BotToken, config.EnvBotToken)
	d.requireSecret(r, "slack.signing_secret", d.cfg.Slack.SigningSecret, config.EnvSigningSecret)

	token := d.cfg.Slack.BotToken
	if token != "" && !strings.HasPrefix(token, "${") && !strings.HasPrefix(token, "xoxb-") {
		d.addWarning(r, "slack", "slack.bot_token",
			"token does not look like a bot token (expected xoxb- prefix); users.lookupByEmail needs users:read.email")
	}
	if !d.cfg.ShouldVerifyToken() {
		d.addWarning(r, "slack", "slack.verify_token",
			"token verification disabled; a bad token will only surface on the first delivery")
	}
}

func (d *Doctor) requireSecret(r *Result, field, value, envName string) {
	if value == "" {
		d.addError(r, "credentials", field, fmt.Sprintf("%s is required (set %s)", field, envName))
		return
	}
	if name, ok := config.UnresolvedEnvVar(value); ok {
		d.addError(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", name))
	}
}

// validateServer checks listen address, route paths and body size.
func (d *Doctor) validateServer(r *Result) {
	s := d.cfg.Server

	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		d.addError(r, "server", "server.listen", fmt.Sprintf("%q is not a valid host:port", s.Listen))
	}

	paths := map[string]string{
		"server.webhook_path":      s.WebhookPath,
		"server.interactions_path": s.InteractionsPath,
	}
	for _, field := range []string{"server.webhook_path", "server.interactions_path"} {
		if !strings.HasPrefix(paths[field], "/") {
			d.addError(r, "server", field, fmt.Sprintf("path %q must start with /", paths[field]))
		}
	}

	normalized := func(p string) string { return strings.TrimSuffix(p, "/") }
	if normalized(s.WebhookPath) == normalized(s.InteractionsPath) {
		d.addError(r, "server", "server.interactions_path",
			fmt.Sprintf("path %q conflicts with server.webhook_path", s.InteractionsPath))
	}
	if d.cfg.MetricsEnabled() {
		mp := normalized(d.cfg.Metrics.Path)
		if mp == normalized(s.WebhookPath) || mp == normalized(s.InteractionsPath) || mp == "/healthz" {
			d.addError(r, "metrics", "metrics.path",
				fmt.Sprintf("path %q conflicts with another route", d.cfg.Metrics.Path))
		}
	}

	if _, err := config.ParseByteSize(s.MaxBodySize); err != nil {
		d.addError(r, "server", "server.max_body_size",
			fmt.Sprintf("invalid size %q: %v", s.MaxBodySize, err))
	}

	if name, ok := config.UnresolvedEnvVar(s.WebhookSecret); ok {
		d.addError(r, "env_vars", "server.webhook_secret",
			fmt.Sprintf("environment variable ${%s} not set", name))
	}
}

// validateMetrics checks the metrics route.
func (d *Doctor) validateMetrics(r *Result) {
	if !d.cfg.MetricsEnabled() {
		return
	}
	if !strings.HasPrefix(d.cfg.Metrics.Path, "/") {
		d.addError(r, "metrics", "metrics.path",
			fmt.Sprintf("path %q must start with /", d.cfg.Metrics.Path))
	}
}

// warnWebhookExposure warns when the notification webhook accepts unsigned
// requests on a non-loopback address.
func (d *Doctor) warnWebhookExposure(r *Result) {
	if d.cfg.Server.WebhookSecret != "" {
		if d.cfg.Server.SignatureHeader == "" {
			d.addError(r, "server", "server.signature_header",
				"signature_header is required when webhook_secret is set")
		}
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.Server.Listen)
	if err != nil {
		return
	}
	if ip := net.ParseIP(host); host == "localhost" || (ip != nil && ip.IsLoopback()) {
		return
	}
	d.addWarning(r, "server", "server.webhook_secret",
		fmt.Sprintf("webhook accepts unsigned requests on %q; set webhook_secret or bind to loopback", d.cfg.Server.Listen))
}

// warnSuspiciousTimeouts warns about timeouts that seem too short or too long.
func (d *Doctor) warnSuspiciousTimeouts(r *Result) {
	if t := d.cfg.Slack.HTTPTimeout; t > 0 && t < time.Second {
		d.addWarning(r, "timeouts", "slack.http_timeout",
			fmt.Sprintf("http_timeout %s is very short (< 1s)", t))
	}
	if t := d.cfg.Slack.TimestampTolerance; t <= 0 {
		d.addError(r, "timeouts", "slack.timestamp_tolerance", "timestamp_tolerance must be positive")
	} else if t > 5*time.Minute {
		d.addWarning(r, "timeouts", "slack.timestamp_tolerance",
			fmt.Sprintf("timestamp_tolerance %s has no effect above 5m: the Slack replay window is capped at 5m", t))
	}
	if w, h := d.cfg.Server.WriteTimeout, d.cfg.Slack.HTTPTimeout; w > 0 && h > 0 && w < 2*h {
		d.addWarning(r, "timeouts", "server.write_timeout",
			fmt.Sprintf("write_timeout %s is shorter than two Slack calls at http_timeout %s", w, h))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
