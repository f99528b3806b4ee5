package webhook

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/mattjoyce/slack-relay/internal/log"
	"github.com/mattjoyce/slack-relay/internal/observability/metrics"
	"github.com/mattjoyce/slack-relay/internal/relay"
)

// handleInteraction verifies a Slack request and acknowledges it.
//
// Interaction payloads (form encoded) and Events API callbacks (JSON) are
// both accepted. Nothing beyond the acknowledgment happens for either, except
// url_verification, which is answered with its challenge.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	logger := log.WithRequest(s.logger, middleware.GetReqID(r.Context()))

	body, tooLarge, err := s.readBody(r)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if tooLarge {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	err = verifySlackRequest(r.Header, body, s.config.SigningSecret, s.now(), s.config.TimestampTolerance)
	if err != nil {
		logger.Warn("slack signature verification failed", "path", r.URL.Path)
		metrics.RecordSignatureFailure(s.config.InteractionsPath)
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		s.ackInteraction(w, body, logger)
		return
	}
	s.ackEvent(w, body, logger)
}

func (s *Server) ackInteraction(w http.ResponseWriter, body []byte, logger *slog.Logger) {
	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		s.respondError(w, http.StatusBadRequest, "malformed interaction payload")
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed interaction payload")
		return
	}

	if cb.Type == slack.InteractionTypeBlockActions {
		for _, action := range cb.ActionCallback.BlockActions {
			if action == nil || !strings.HasPrefix(action.ActionID, relay.ButtonActionIDPrefix) {
				continue
			}
			logger.Debug("button clicked",
				"action_id", action.ActionID,
				"user_id", cb.User.ID,
			)
		}
	}

	metrics.RecordInteraction(string(cb.Type))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) ackEvent(w http.ResponseWriter, body []byte, logger *slog.Logger) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Type == "" {
		s.respondError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if envelope.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			s.respondError(w, http.StatusBadRequest, "malformed event payload")
			return
		}
		metrics.RecordInteraction(slackevents.URLVerification)
		s.respondText(w, http.StatusOK, challenge.Challenge)
		return
	}

	kind := envelope.Type
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Unmapped inner event types still get acknowledged.
		logger.Debug("event not parsed", "type", envelope.Type, "error", err)
	} else if event.InnerEvent.Type != "" {
		kind = event.InnerEvent.Type
	}

	metrics.RecordInteraction(kind)
	w.WriteHeader(http.StatusOK)
}
