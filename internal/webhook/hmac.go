package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// errVerification is the only error signature checks return, so callers
// cannot leak which part of the check failed.
var errVerification = errors.New("webhook verification failed")

// verifyHMACSignature checks an HMAC-SHA256 signature over body.
//
// Accepted header formats are "sha256=<hex>" and plain "<hex>".
// Comparison is constant-time.
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}

	actualMAC, err := parseSignature(signature)
	if err != nil {
		return errVerification
	}

	if subtle.ConstantTimeCompare(signBody(secret, body), actualMAC) != 1 {
		return errVerification
	}
	return nil
}

// parseSignature decodes a "sha256=<hex>" or plain hex signature.
func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
}

// verifySlackRequest checks the Slack v0 signature headers on body.
//
// The timestamp must be within tolerance of now in either direction. The
// signature itself is checked by slack.SecretsVerifier, which also enforces
// Slack's own 5m window against the wall clock.
func verifySlackRequest(header http.Header, body []byte, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return errVerification
	}

	sec, err := strconv.ParseInt(header.Get(slackTimestampHeader), 10, 64)
	if err != nil {
		return errVerification
	}
	if skew := now.Sub(time.Unix(sec, 0)); skew > tolerance || skew < -tolerance {
		return errVerification
	}

	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return errVerification
	}
	if _, err := sv.Write(body); err != nil {
		return errVerification
	}
	if err := sv.Ensure(); err != nil {
		return errVerification
	}
	return nil
}

func signBody(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
