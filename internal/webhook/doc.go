// Package webhook implements the relay's HTTP surface.
//
// # Routes
//
//   - POST /v1/webhook: notification webhook. The body is validated by
//     relay.ParseRequest and delivered through a Notifier.
//   - POST /slack/events: Slack interaction and Events API callbacks, verified
//     with the Slack v0 signing scheme and acknowledged.
//   - GET /healthz: liveness with uptime and version.
//   - GET /metrics: Prometheus exposition, when enabled.
//
// Both POST paths are configurable.
//
// # Security Model
//
// - Body size limits enforced on every POST (413 when exceeded)
// - Optional HMAC-SHA256 on the notification webhook, generic 403 on mismatch
// - Slack signatures checked with constant-time comparison and a timestamp
// tolerance, generic 401 on failure
// - Request logging excludes bodies and recipient addresses
//
// # Notification Responses
//
// - 204 No Content: message delivered
// - 400 Bad Request: validation failure, plain-text message
// - 403 Forbidden: HMAC enabled and signature invalid or missing
// - 413 Payload Too Large: body exceeds max_body_size
// - 500 Internal Server Error: lookup or send failed, empty body
//
// # Example Usage
//
//	cfg, err := webhook.FromGlobalConfig(relayConfig, version)
//	if err != nil {
//		return err
//	}
//	server := webhook.New(cfg, relay.NewService(client, logger), logger)
//	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
//		return err
//	}
package webhook
