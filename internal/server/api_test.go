package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/health"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/store"
)

func TestListQuestionnaires(t *testing.T) {
	s := newTestServer(health.NewMonitor("test"))

	w := do(t, s, http.MethodGet, "/api/v1/questionnaires")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got []questionnaireSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, questionnaire.PSS14, got[0].ID)
	assert.Equal(t, 14, got[0].Questions)
	assert.Equal(t, 56, got[0].MaxTotal)
	assert.Equal(t, questionnaire.Fisio, got[1].ID)
}

func TestGetQuestionnaire(t *testing.T) {
	s := newTestServer(health.NewMonitor("test"))

	t.Run("known", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/v1/questionnaires/pss14")
		require.Equal(t, http.StatusOK, w.Code)

		var d questionnaire.Definition
		require.NoError(t, json.NewDecoder(w.Body).Decode(&d))
		assert.Equal(t, questionnaire.PSS14, d.ID)
		assert.Len(t, d.Questions, 14)
	})

	t.Run("unknown", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/v1/questionnaires/bdi")
		require.Equal(t, http.StatusNotFound, w.Code)

		var e apiError
		require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
		assert.Equal(t, "QUESTIONNAIRE-001", e.Error.Code)
	})
}

func TestListResults(t *testing.T) {
	db := store.OpenMemory(t)
	ctx := context.Background()

	engine := questionnaire.NewEngine()
	for _, tc := range []struct {
		id      questionnaire.ID
		answers []int
	}{
		{questionnaire.PSS14, []int{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}},
		{questionnaire.Fisio, []int{0, 0, 0, 0, 0}},
	} {
		res, err := engine.Score(tc.id, tc.answers)
		require.NoError(t, err)
		require.NoError(t, db.RecordResult(ctx, res))
	}

	s := newTestServer(health.NewMonitor("test"), WithResults(db))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"all", "", http.StatusOK, 2},
		{"filtered", "?questionnaire=pss14", http.StatusOK, 1},
		{"limited", "?limit=1", http.StatusOK, 1},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/v1/results"+tt.query)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var got []questionnaire.Result
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestListResultsWithoutStore(t *testing.T) {
	s := newTestServer(health.NewMonitor("test"))

	w := do(t, s, http.MethodGet, "/api/v1/results")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPostAlert(t *testing.T) {
	db := store.OpenMemory(t)
	_, m := metrics.NewRegistry()
	s := newTestServer(health.NewMonitor("test"), WithAlerts(db), WithMetrics(m, nil))

	body := `{"bvp": 3.2, "eda": 2.4, "temp": 32.1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var a alert.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&a))
	assert.Equal(t, alert.ZoneStress, a.Zone)
	assert.True(t, a.BVPNormal)
	assert.Equal(t, "normal", a.TempStatus)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, int64(1), a.Seq)
	assert.WithinDuration(t, time.Now(), a.ReceivedAt, 5*time.Second)

	stored, err := db.ListAlerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, a.ID, stored[0].ID)
}

func TestPostAlertMalformed(t *testing.T) {
	s := newTestServer(health.NewMonitor("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(`{"eda":`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var e apiError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	assert.Equal(t, "ALERT-001", e.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg, m := metrics.NewRegistry()
	s := newTestServer(health.NewMonitor("test"),
		WithMetrics(m, metrics.HandlerFor(reg, promhttp.HandlerOpts{})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(`{"bvp":0,"eda":0.4,"temp":32}`))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	w := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `stressguard_alerts_received_total{zone="normal"} 1`)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	s := newTestServer(health.NewMonitor("test"))
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics").Code)
}
