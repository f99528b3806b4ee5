package config

const redactedValue = "[REDACTED]"

// Redacted returns a copy of cfg with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Slack.BotToken = redact(c.Slack.BotToken)
	out.Slack.SigningSecret = redact(c.Slack.SigningSecret)
	out.Server.WebhookSecret = redact(c.Server.WebhookSecret)
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	// Unresolved placeholders carry no secret and help with debugging.
	if _, ok := UnresolvedEnvVar(s); ok {
		return s
	}
	return redactedValue
}
