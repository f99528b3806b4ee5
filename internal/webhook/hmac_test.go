package webhook

import (
	"encoding/hex"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func computeExpectedSignature(body []byte, secret string) string {
	return hex.EncodeToString(signBody(secret, body))
}

func computeSlackSignature(body []byte, timestamp, secret string) string {
	return "v0=" + hex.EncodeToString(signBody(secret, []byte("v0:"+timestamp+":"+string(body))))
}

func slackHeader(timestamp, signature string) http.Header {
	h := http.Header{}
	if timestamp != "" {
		h.Set(slackTimestampHeader, timestamp)
	}
	if signature != "" {
		h.Set(slackSignatureHeader, signature)
	}
	return h
}

func formatPrefixedSignature(hexSig string) string {
	return "sha256=" + hexSig
}

func TestVerifyHMACSignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"title_markdown":"t","body_markdown":"b"}`)

	expectedSig := computeExpectedSignature(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{name: "valid signature - plain hex", body: body, signature: expectedSig, secret: secret},
		{name: "valid signature - sha256 prefix", body: body, signature: formatPrefixedSignature(expectedSig), secret: secret},
		{
			name:      "invalid signature - wrong signature",
			body:      body,
			signature: "0000000000000000000000000000000000000000000000000000000000000000",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - tampered body",
			body:      []byte(`{"title_markdown":"t","body_markdown":"hacked"}`),
			signature: expectedSig,
			secret:    secret,
			wantErr:   true,
		},
		{name: "invalid signature - wrong secret", body: body, signature: expectedSig, secret: "wrong-secret", wantErr: true},
		{name: "invalid signature - empty signature", body: body, signature: "", secret: secret, wantErr: true},
		{name: "invalid signature - empty secret", body: body, signature: expectedSig, secret: "", wantErr: true},
		{name: "invalid signature - malformed hex", body: body, signature: "not-valid-hex", secret: secret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyHMACSignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyHMACSignature() error = %v, wantErr %v", err, tt.wantErr)
			}

			// All errors should be generic (no information leakage)
			if err != nil && err != errVerification {
				t.Errorf("error should be generic, got: %v", err)
			}
		})
	}
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		want      string
		wantErr   bool
	}{
		{
			name:      "sha256 prefix",
			signature: "sha256=3a8f7b2c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a",
			want:      "3a8f7b2c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a",
		},
		{
			name:      "plain hex",
			signature: "3a8f7b2c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a",
			want:      "3a8f7b2c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a",
		},
		{name: "invalid hex", signature: "not-valid-hex", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSignature(tt.signature)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSignature() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && hex.EncodeToString(got) != tt.want {
				t.Errorf("parseSignature() = %x, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySlackRequest(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := []byte("payload=%7B%22type%22%3A%22block_actions%22%7D")
	// The Slack verifier also checks the wall clock, so signed timestamps stay current.
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := computeSlackSignature(body, ts, secret)

	tests := []struct {
		name      string
		body      []byte
		timestamp string
		signature string
		secret    string
		now       time.Time
		tolerance time.Duration
		wantErr   bool
	}{
		{name: "valid", body: body, timestamp: ts, signature: valid, secret: secret, now: now},
		{name: "valid within tolerance", body: body, timestamp: ts, signature: valid, secret: secret, now: now.Add(4 * time.Minute)},
		{name: "clock behind sender", body: body, timestamp: ts, signature: valid, secret: secret, now: now.Add(-4 * time.Minute)},
		{name: "stale timestamp", body: body, timestamp: ts, signature: valid, secret: secret, now: now.Add(6 * time.Minute), wantErr: true},
		{name: "future timestamp", body: body, timestamp: ts, signature: valid, secret: secret, now: now.Add(-6 * time.Minute), wantErr: true},
		{
			name:      "outside tighter tolerance",
			body:      body,
			timestamp: ts,
			signature: valid,
			secret:    secret,
			now:       now.Add(2 * time.Minute),
			tolerance: time.Minute,
			wantErr:   true,
		},
		{name: "wrong secret", body: body, timestamp: ts, signature: valid, secret: "other", now: now, wantErr: true},
		{name: "tampered body", body: []byte("payload=x"), timestamp: ts, signature: valid, secret: secret, now: now, wantErr: true},
		{
			name:      "timestamp not signed",
			body:      body,
			timestamp: strconv.FormatInt(now.Unix()+1, 10),
			signature: valid,
			secret:    secret,
			now:       now,
			wantErr:   true,
		},
		{name: "unknown version prefix", body: body, timestamp: ts, signature: "v1=" + valid[3:], secret: secret, now: now, wantErr: true},
		{name: "non-numeric timestamp", body: body, timestamp: "yesterday", signature: valid, secret: secret, now: now, wantErr: true},
		{name: "missing signature", body: body, timestamp: ts, signature: "", secret: secret, now: now, wantErr: true},
		{name: "missing timestamp", body: body, timestamp: "", signature: valid, secret: secret, now: now, wantErr: true},
		{name: "empty secret", body: body, timestamp: ts, signature: valid, secret: "", now: now, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tolerance := tt.tolerance
			if tolerance == 0 {
				tolerance = DefaultTimestampTolerance
			}
			err := verifySlackRequest(slackHeader(tt.timestamp, tt.signature), tt.body, tt.secret, tt.now, tolerance)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifySlackRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != errVerification {
				t.Errorf("error should be generic, got: %v", err)
			}
		})
	}
}
