package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/slack-relay/internal/relay"
)

// Notifier delivers a validated notification.
type Notifier interface {
	Deliver(ctx context.Context, n *relay.Notification) error
}

// Config holds HTTP server configuration.
type Config struct {
	Listen           string
	WebhookPath      string
	InteractionsPath string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// WebhookSecret enables HMAC verification of the notification webhook.
	// Empty disables it.
	WebhookSecret string

	// SignatureHeader carries the notification webhook HMAC signature.
	SignatureHeader string

	// SigningSecret verifies Slack v0 signatures on the interactions route.
	SigningSecret string

	// TimestampTolerance bounds the age of X-Slack-Request-Timestamp.
	TimestampTolerance time.Duration

	// MetricsPath serves Prometheus metrics. Empty disables the route.
	MetricsPath string

	// Version is reported by the health endpoint.
	Version string
}

// ErrorResponse is the JSON response for transport-level errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version"`
}

// Default values
const (
	DefaultMaxBodySize        = 1048576 // 1 MB
	DefaultSignatureHeader    = "X-Signature-256"
	DefaultTimestampTolerance = 5 * time.Minute
	DefaultShutdownTimeout    = 5 * time.Second

	healthPath = "/healthz"
)

// Slack request signing headers.
const (
	slackSignatureHeader = "X-Slack-Signature"
	slackTimestampHeader = "X-Slack-Request-Timestamp"
)
