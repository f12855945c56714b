package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Per-request ceiling for the readiness probe; a hung dependency must not
// hold the probe open indefinitely.
const probeTimeout = 5 * time.Second

// Checker probes one dependency. A nil return means the dependency is
// reachable.
type Checker func(ctx context.Context) error

// Status is the reported health of a component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Response is the JSON body returned by the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler serves liveness and readiness endpoints over the registered
// checkers.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewHandler creates an empty health handler.
func NewHandler() *Handler {
	return &Handler{checkers: make(map[string]Checker)}
}

// Register adds a named dependency check. Safe for concurrent use.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) snapshot() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		out[name] = c
	}
	return out
}

// runChecks probes every registered dependency concurrently, so the probe
// takes as long as the slowest check rather than the sum of all of them.
func (h *Handler) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	checkers := h.snapshot()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		checks  = make(map[string]CheckResult, len(checkers))
		overall = StatusUp
	)

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, check Checker) {
			defer wg.Done()
			result := CheckResult{Status: StatusUp}
			if err := check(ctx); err != nil {
				result = CheckResult{Status: StatusDown, Error: err.Error()}
			}

			mu.Lock()
			checks[name] = result
			if result.Status == StatusDown {
				overall = StatusDown
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return checks, overall
}

// LivenessHandler reports 200 whenever the process is able to serve.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs every registered check and reports 200 when all
// pass, 503 otherwise.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		checks, overall := h.runChecks(ctx)

		status := http.StatusOK
		if overall == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, Response{
			Status:    overall,
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		})
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
