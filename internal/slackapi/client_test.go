package slackapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slack-relay/internal/relay"
)

// fakeSlack is a minimal Web API double keyed by method name.
type fakeSlack struct {
	mu       sync.Mutex
	calls    []string
	forms    map[string]map[string]string
	handlers map[string]func(form map[string]string) any
}

func newFakeSlack(t *testing.T) (*fakeSlack, *httptest.Server) {
	t.Helper()
	f := &fakeSlack{
		forms:    make(map[string]map[string]string),
		handlers: make(map[string]func(map[string]string) any),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSlack) on(method string, h func(form map[string]string) any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeSlack) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")
	_ = r.ParseForm()
	form := make(map[string]string)
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.forms[method] = form
	h, ok := f.handlers[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown_method"})
		return
	}
	_ = json.NewEncoder(w).Encode(h(form))
}

func (f *fakeSlack) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New("xoxb-test", Options{APIURL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_EmptyToken(t *testing.T) {
	_, err := New("  ", Options{})
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestLookupUserByEmail(t *testing.T) {
	fake, srv := newFakeSlack(t)
	fake.on(methodLookupByEmail, func(form map[string]string) any {
		if form["email"] != "a@x.com" {
			return map[string]any{"ok": false, "error": "users_not_found"}
		}
		return map[string]any{"ok": true, "user": map[string]any{"id": "U123", "name": "a"}}
	})

	c := newTestClient(t, srv.URL)

	id, err := c.LookupUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "U123", id)

	_, err = c.LookupUserByEmail(context.Background(), "nobody@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users_not_found")
	assert.Contains(t, err.Error(), methodLookupByEmail)
}

func TestPostMessage(t *testing.T) {
	fake, srv := newFakeSlack(t)
	fake.on(methodPostMessage, func(form map[string]string) any {
		return map[string]any{"ok": true, "channel": form["channel"], "ts": "1700000000.000100"}
	})

	c := newTestClient(t, srv.URL)
	msg := relay.BuildMessage("U123", &relay.Notification{
		Title:   "Build Failed",
		Body:    "See logs",
		Actions: []relay.Action{{Label: "Retry", URL: "http://x/retry"}},
	})

	require.NoError(t, c.PostMessage(context.Background(), msg))

	fake.mu.Lock()
	form := fake.forms[methodPostMessage]
	fake.mu.Unlock()

	assert.Equal(t, "U123", form["channel"])
	assert.Equal(t, "See logs", form["text"])

	var blocks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(form["blocks"]), &blocks))
	require.Len(t, blocks, 3)
	assert.Equal(t, "header", blocks[0]["type"])
	assert.Equal(t, "actions", blocks[2]["type"])
}

func TestPostMessage_APIError(t *testing.T) {
	fake, srv := newFakeSlack(t)
	fake.on(methodPostMessage, func(map[string]string) any {
		return map[string]any{"ok": false, "error": "channel_not_found"}
	})

	c := newTestClient(t, srv.URL)
	err := c.PostMessage(context.Background(), relay.OutboundMessage{Channel: "U404", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestLookupUserByEmail_ContextCanceled(t *testing.T) {
	_, srv := newFakeSlack(t)
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.LookupUserByEmail(ctx, "a@x.com")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	fake, srv := newFakeSlack(t)
	fake.on(methodAuthTest, func(map[string]string) any {
		return map[string]any{
			"ok": true, "team": "Acme", "team_id": "T1",
			"user": "relay", "user_id": "U0BOT", "bot_id": "B1",
		}
	})

	c := newTestClient(t, srv.URL)
	id, err := c.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", id.Team)
	assert.Equal(t, "T1", id.TeamID)
	assert.Equal(t, "U0BOT", id.UserID)
	assert.Equal(t, []string{methodAuthTest}, fake.called())
}

func TestVerify_InvalidAuth(t *testing.T) {
	fake, srv := newFakeSlack(t)
	fake.on(methodAuthTest, func(map[string]string) any {
		return map[string]any{"ok": false, "error": "invalid_auth"}
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}
