// Package slackapi adapts the Slack Web API client to the relay's SlackClient
// interface. Every call is timed into the slack_api_call_duration_seconds
// histogram and wrapped in a client span.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/slack-relay/internal/observability/metrics"
	"github.com/mattjoyce/slack-relay/internal/observability/tracing"
	"github.com/mattjoyce/slack-relay/internal/relay"
)

// Slack Web API method names, used as metric and span labels.
const (
	methodLookupByEmail = "users.lookupByEmail"
	methodPostMessage   = "chat.postMessage"
	methodAuthTest      = "auth.test"
)

// ErrEmptyToken is returned by New when no bot token is supplied.
var ErrEmptyToken = errors.New("slack bot token is empty")

// Options configures a Client.
type Options struct {
	// APIURL overrides the Web API base URL. Empty uses slack.com.
	APIURL string
	// Timeout bounds each HTTP round trip to Slack.
	Timeout time.Duration
	// HTTPClient replaces the default client built from Timeout.
	HTTPClient *http.Client
}

// Identity is the bot identity reported by auth.test.
type Identity struct {
	Team   string
	TeamID string
	User   string
	UserID string
	BotID  string
}

// Client calls the Slack Web API with a bot token.
type Client struct {
	api *slack.Client
}

var _ relay.SlackClient = (*Client)(nil)

// New creates a Client authenticated with token.
func New(token string, opts Options) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	options := []slack.Option{slack.OptionHTTPClient(httpClient)}
	if opts.APIURL != "" {
		// slack-go joins method names directly onto the base URL.
		options = append(options, slack.OptionAPIURL(strings.TrimRight(opts.APIURL, "/")+"/"))
	}

	return &Client{api: slack.New(token, options...)}, nil
}

// LookupUserByEmail resolves email to a Slack user ID.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (userID string, err error) {
	ctx, span := startCall(ctx, methodLookupByEmail)
	start := time.Now()
	defer func() {
		metrics.ObserveSlackCall(methodLookupByEmail, start, err)
		tracing.End(span, err)
	}()

	user, err := c.api.GetUserByEmailContext(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", methodLookupByEmail, err)
	}
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("%s: response carried no user id", methodLookupByEmail)
	}
	return user.ID, nil
}

// PostMessage sends msg with its fallback text and blocks.
func (c *Client) PostMessage(ctx context.Context, msg relay.OutboundMessage) (err error) {
	ctx, span := startCall(ctx, methodPostMessage,
		attribute.Int("slack.blocks", len(msg.Blocks)),
	)
	start := time.Now()
	defer func() {
		metrics.ObserveSlackCall(methodPostMessage, start, err)
		tracing.End(span, err)
	}()

	_, ts, err := c.api.PostMessageContext(ctx, msg.Channel,
		slack.MsgOptionText(msg.Text, false),
		slack.MsgOptionBlocks(msg.Blocks...),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", methodPostMessage, err)
	}
	span.SetAttributes(attribute.String("slack.message_ts", ts))
	return nil
}

// Verify checks the token with auth.test and returns the bot identity.
func (c *Client) Verify(ctx context.Context) (id *Identity, err error) {
	ctx, span := startCall(ctx, methodAuthTest)
	start := time.Now()
	defer func() {
		metrics.ObserveSlackCall(methodAuthTest, start, err)
		tracing.End(span, err)
	}()

	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", methodAuthTest, err)
	}
	return &Identity{
		Team:   resp.Team,
		TeamID: resp.TeamID,
		User:   resp.User,
		UserID: resp.UserID,
		BotID:  resp.BotID,
	}, nil
}

func startCall(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("slack.method", method))
	return tracing.Tracer().Start(ctx, "slack "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}
