package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(notificationsTotal.WithLabelValues(OutcomeDelivered))
	RecordNotification(OutcomeDelivered)
	after := testutil.ToFloat64(notificationsTotal.WithLabelValues(OutcomeDelivered))
	assert.Equal(t, before+1, after)
}

func TestObserveSlackCall(t *testing.T) {
	before := testutil.CollectAndCount(slackCallDuration)
	ObserveSlackCall("test.method", time.Now(), nil)
	ObserveSlackCall("test.method", time.Now(), errors.New("boom"))
	after := testutil.CollectAndCount(slackCallDuration)
	// ok and error are distinct series
	assert.Equal(t, before+2, after)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/things/{id}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/things/{id}", "418"))
	assert.Equal(t, before+1, after)
}

func TestHandler_ExposesRelayMetrics(t *testing.T) {
	RecordInteraction("block_actions")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "slack_relay_interactions_total"))
}
