package relay

import (
	"bytes"
	"encoding/json"
)

// Action is a link rendered as a URL button under the message.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notification is a validated webhook request, ready to be delivered.
type Notification struct {
	Title          string
	Body           string
	RecipientEmail string
	// Actions keeps input order. May be empty.
	Actions []Action
}

// Wire keys of POST /v1/webhook. Lookups are exact: encoding/json would
// otherwise accept any casing.
const (
	keyTitle     = "title_markdown"
	keyBody      = "body_markdown"
	keyPayload   = "payload"
	keyUserEmail = "user_email"
	keyActions   = "actions"
)

type fields map[string]json.RawMessage

// present reports whether key holds a value other than null, false, 0 or "".
func (f fields) present(key string) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")), bytes.Equal(raw, []byte(`""`)):
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n == 0 {
		return false
	}
	return true
}

func (f fields) decode(key string, v any) error {
	return json.Unmarshal(f[key], v)
}

// ValidationError is a client error whose Message is returned verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation failures, in the order they are checked.
var (
	ErrBodyMissing     = &ValidationError{Message: "Error: request body is missing"}
	ErrBodyMalformed   = &ValidationError{Message: "Error: request body is not valid JSON"}
	ErrMissingContent  = &ValidationError{Message: `Error: missing fields: "title_markdown", or "body_markdown"`}
	ErrMissingPayload  = &ValidationError{Message: `Error: missing "payload" field`}
	ErrMissingDelivery = &ValidationError{Message: `Error: missing fields: "user_email", "actions"`}
)

// ParseRequest validates a raw webhook body and returns the Notification it
// describes. Checks run in a fixed order and the first failure is returned as
// one of the Err* validation errors above.
func ParseRequest(body []byte) (*Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrBodyMissing
	}

	var top fields
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, ErrBodyMalformed
	}

	if !top.present(keyTitle) || !top.present(keyBody) {
		return nil, ErrMissingContent
	}
	var n Notification
	if top.decode(keyTitle, &n.Title) != nil || top.decode(keyBody, &n.Body) != nil {
		return nil, ErrBodyMalformed
	}

	if !top.present(keyPayload) {
		return nil, ErrMissingPayload
	}

	// A payload that is not an object carries neither delivery field.
	var payload fields
	if top.decode(keyPayload, &payload) != nil {
		return nil, ErrMissingDelivery
	}

	// actions is a presence check: [] is accepted.
	if !payload.present(keyUserEmail) || !payload.present(keyActions) {
		return nil, ErrMissingDelivery
	}
	if payload.decode(keyUserEmail, &n.RecipientEmail) != nil || payload.decode(keyActions, &n.Actions) != nil {
		return nil, ErrBodyMalformed
	}
	return &n, nil
}
