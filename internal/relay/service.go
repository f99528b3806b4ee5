package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mattjoyce/slack-relay/internal/observability/tracing"
)

//go:generate mockgen -destination=mocks/mock_slack.go -package=mocks github.com/mattjoyce/slack-relay/internal/relay SlackClient

// SlackClient is the part of the Slack Web API the relay depends on.
type SlackClient interface {
	// LookupUserByEmail resolves an email address to a Slack user ID.
	LookupUserByEmail(ctx context.Context, email string) (string, error)
	// PostMessage sends msg. An error means the message was not accepted.
	PostMessage(ctx context.Context, msg OutboundMessage) error
}

// Service delivers notifications to Slack users.
// It is safe for concurrent use as long as the SlackClient is.
type Service struct {
	client SlackClient
	logger *slog.Logger
}

// NewService creates a Service that talks to Slack through client.
func NewService(client SlackClient, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Deliver resolves the recipient and posts the notification as a direct message.
//
// The lookup and the send run sequentially with no retry. A lookup failure
// returns before anything is sent. Errors are wrapped and returned unlogged so
// the caller has a single place to map them to a response.
func (s *Service) Deliver(ctx context.Context, n *Notification) (err error) {
	deliveryID := uuid.NewString()

	ctx, span := tracing.Start(ctx, "relay.Deliver",
		attribute.String("relay.delivery_id", deliveryID),
		attribute.Int("relay.actions", len(n.Actions)),
	)
	defer func() { tracing.End(span, err) }()

	logger := s.logger.With(
		slog.String("delivery_id", deliveryID),
		slog.String("recipient", Fingerprint(n.RecipientEmail)),
	)

	userID, err := s.client.LookupUserByEmail(ctx, n.RecipientEmail)
	if err != nil {
		return fmt.Errorf("lookup user by email: %w", err)
	}
	logger.Debug("recipient resolved", "user_id", userID)

	msg := BuildMessage(userID, n)
	if err := s.client.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post message to %s: %w", userID, err)
	}

	logger.Info("notification delivered",
		"user_id", userID,
		"blocks", len(msg.Blocks),
		"actions", len(n.Actions),
	)
	return nil
}

// Fingerprint returns a short stable BLAKE3 digest of an email address so
// log lines can be correlated without recording the address itself.
func Fingerprint(email string) string {
	sum := blake3.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:8])
}
