package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-sales-stats/internal/queue"
	"github.com/noah-isme/toko-sales-stats/internal/runlog"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the process-wide readiness flag, e.g. during shutdown.
func SetReady(v bool) {
	ready.Store(v)
}

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// RunReader returns recorded runs.
type RunReader interface {
	Last(ctx context.Context) (sales.Report, error)
	Recent(ctx context.Context, n int) ([]sales.Report, error)
}

// maxListedRuns caps the limit accepted by ListRuns.
const maxListedRuns = 100

// RunTrigger queues an out-of-schedule run.
type RunTrigger interface {
	Enqueue(ctx context.Context, trigger string) (string, error)
}

// Handler exposes HTTP handlers for health and run endpoints.
type Handler struct {
	Probes       map[string]Probe
	ProbeTimeout time.Duration
	Runs         RunReader
	Trigger      RunTrigger
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and answers 503 when any of them fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Probes)+1)
	healthy := ready.Load()
	if !healthy {
		status["process"] = "shutting down"
	}
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout())
		err := h.Probes[name](ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// LastRun returns the most recent run report.
func (h Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "run log unavailable")
		return
	}
	report, err := h.Runs.Last(r.Context())
	if errors.Is(err, runlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no run recorded")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRuns returns recent run reports, newest first. The optional limit
// query parameter must be between 1 and 100.
func (h Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "run log unavailable")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListedRuns {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	reports, err := h.Runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]sales.Report{"runs": reports})
}

// TriggerRun queues a manual run.
func (h Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.Trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "trigger unavailable")
		return
	}
	id, err := h.Trigger.Enqueue(r.Context(), "manual")
	if errors.Is(err, queue.ErrRunPending) {
		writeError(w, http.StatusConflict, "run_pending", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "enqueue_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": id})
}

func (h Handler) probeTimeout() time.Duration {
	if h.ProbeTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.ProbeTimeout
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the error payload of every non-2xx answer.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]ErrorBody{"error": {Code: code, Message: message}})
}
