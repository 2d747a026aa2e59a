package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/health"
	"github.com/noah-isme/toko-sales-stats/internal/queue"
	"github.com/noah-isme/toko-sales-stats/internal/runlog"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

type stubRuns struct {
	report  sales.Report
	history []sales.Report
	err     error
	limit   *int
}

func (s stubRuns) Last(context.Context) (sales.Report, error) { return s.report, s.err }

func (s stubRuns) Recent(_ context.Context, n int) ([]sales.Report, error) {
	if s.limit != nil {
		*s.limit = n
	}
	return s.history, s.err
}

type stubTrigger struct {
	id  string
	err error
}

func (s stubTrigger) Enqueue(context.Context, string) (string, error) { return s.id, s.err }

func ok(context.Context) error { return nil }

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	handler := health.Handler{Probes: map[string]health.Probe{"redis": ok, "shopify": ok}, ProbeTimeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, map[string]string{"redis": "ok", "shopify": "ok"}, status)

	handler.Probes["redis"] = func(context.Context) error { return errors.New("redis down") }
	rr = httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "redis down")
}

func TestReadinessAfterShutdown(t *testing.T) {
	handler := health.Handler{Probes: map[string]health.Probe{"redis": ok}}
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })
	rr := httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	health.SetReady(true)
	rr = httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLastRun(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{Runs: stubRuns{err: runlog.ErrNotFound}}.LastRun(rr, httptest.NewRequest(http.MethodGet, "/runs/last", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":{"code":"not_found","message":"no run recorded"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	health.Handler{Runs: stubRuns{report: sales.Report{RunID: "run-9", Projected: 3}}}.LastRun(rr, httptest.NewRequest(http.MethodGet, "/runs/last", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var report sales.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, "run-9", report.RunID)
	require.Equal(t, 3, report.Projected)
}

func TestListRuns(t *testing.T) {
	var limit int
	handler := health.Handler{Runs: stubRuns{
		history: []sales.Report{{RunID: "run-2"}, {RunID: "run-1"}},
		limit:   &limit,
	}}

	rr := httptest.NewRecorder()
	handler.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/runs?limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, limit)
	var body struct {
		Runs []sales.Report `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	require.Equal(t, "run-2", body.Runs[0].RunID)

	rr = httptest.NewRecorder()
	handler.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, limit)

	for _, q := range []string{"0", "-3", "abc", "101"} {
		rr = httptest.NewRecorder()
		handler.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/runs?limit="+q, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code, q)
		require.Contains(t, rr.Body.String(), "invalid_limit")
	}

	rr = httptest.NewRecorder()
	health.Handler{Runs: stubRuns{err: errors.New("redis down")}}.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	health.Handler{}.ListRuns(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_stats_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	limited := 0
	router := health.NewRouter(health.RouterConfig{
		Handler: health.Handler{
			Runs:    stubRuns{report: sales.Report{RunID: "run-1"}, history: []sales.Report{{RunID: "run-1"}}},
			Trigger: stubTrigger{id: "task-7"},
		},
		Logger:         zerolog.Nop(),
		Gatherer:       reg,
		AllowedOrigins: []string{"https://ops.example.com"},
		TriggerLimit: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				limited++
				next.ServeHTTP(w, r)
			})
		},
	})

	for path, code := range map[string]int{"/healthz": 200, "/readyz": 200, "/runs": 200, "/runs/last": 200, "/metrics": 200} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, code, rr.Code, path)
		if path == "/metrics" {
			require.Contains(t, rr.Body.String(), "sales_stats_test_total 1")
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/runs", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "task-7")
	require.Equal(t, 1, limited)

	req := httptest.NewRequest(http.MethodGet, "/runs/last", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, "https://ops.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestTriggerRunPending(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{Trigger: stubTrigger{err: queue.ErrRunPending}}.TriggerRun(rr, httptest.NewRequest(http.MethodPost, "/runs", nil))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	health.Handler{}.TriggerRun(rr, httptest.NewRequest(http.MethodPost, "/runs", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
