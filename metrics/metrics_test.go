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
	"github.com/stretchr/testify/require"
)

func TestObserveToolCall(t *testing.T) {
	ok := toolInvocationsTotal.WithLabelValues("current_date", "ok")
	failed := toolInvocationsTotal.WithLabelValues("current_date", "error")
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveToolCall("current_date", nil)
	ObserveToolCall("current_date", errors.New("boom"))
	ObserveToolCall("current_date", nil)

	assert.Equal(t, beforeOK+2, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestIncrementSafetyRejection(t *testing.T) {
	c := safetyRejectionsTotal.WithLabelValues("DROP TABLE")
	before := testutil.ToFloat64(c)
	IncrementSafetyRejection("DROP TABLE")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObserveAgentRun(t *testing.T) {
	c := agentRunsTotal.WithLabelValues("failed", "timeout")
	before := testutil.ToFloat64(c)
	ObserveAgentRun("failed", "timeout", 4)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObserveStageCountsByOutcome(t *testing.T) {
	before := testutil.CollectAndCount(chainStageDurationSeconds)
	ObserveStage("metrics-test-stage", nil, 10*time.Millisecond)
	ObserveStage("metrics-test-stage", errors.New("x"), time.Millisecond)
	assert.Equal(t, before+2, testutil.CollectAndCount(chainStageDurationSeconds))
}

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	matched := httpRequestsTotal.WithLabelValues(http.MethodGet, "/orders/{id}", "418")
	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeMatched, beforeUnmatched := testutil.ToFloat64(matched), testutil.ToFloat64(unmatched)

	for _, path := range []string{"/orders/1", "/orders/2", "/nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, beforeMatched+2, testutil.ToFloat64(matched))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}

func TestHandlerExposesCollectors(t *testing.T) {
	IncrementSafetyRejection("ALTER TABLE")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shelfcare_safety_rejections_total"))
}
