package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      1 * time.Second, // Short for tests.
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func newBreaker(name string) *CircuitBreakerClient {
	client := New(Config{Timeout: 5 * time.Second, MaxRetries: 0, MaxConnsPerHost: 10})
	return NewCircuitBreakerClient(client, testBreakerConfig(name), testLogger())
}

// get issues a GET through the breaker the way the catalog resolver does:
// build the request, hand it to Do.
func get(t *testing.T, cb *CircuitBreakerClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return cb.Do(context.Background(), req)
}

func TestCircuitBreaker_ClosedOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"d8f2a1b4-3c5e-4f6a-9b8c-7d6e5f4a3b2c"}`))
	}))
	defer server.Close()

	cb := newBreaker("catalog-closed")

	resp, err := get(t, cb, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOnServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR"}}`))
	}))
	defer server.Close()

	cb := newBreaker("catalog-trip")

	// Three consecutive 500s exceed the 0.5 failure ratio at MinRequests=3.
	for i := 0; i < 3; i++ {
		_, err := get(t, cb, server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server error 500")
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := get(t, cb, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_OpenRejectsWithoutCallingServer(t *testing.T) {
	var reqCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testBreakerConfig("catalog-open-reject")
	cfg.Timeout = 5 * time.Second // Stays open for the whole test.

	client := New(Config{Timeout: 5 * time.Second, MaxRetries: 0, MaxConnsPerHost: 10})
	cb := NewCircuitBreakerClient(client, cfg, testLogger())

	for i := 0; i < 3; i++ {
		_, _ = get(t, cb, server.URL)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	beforeCount := reqCount.Load()

	for i := 0; i < 5; i++ {
		_, err := get(t, cb, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	}

	assert.Equal(t, beforeCount, reqCount.Load())
}

func TestCircuitBreaker_HalfOpenToClosedRecovery(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"d8f2a1b4-3c5e-4f6a-9b8c-7d6e5f4a3b2c"}`))
	}))
	defer server.Close()

	cfg := testBreakerConfig("catalog-recovery")
	cfg.Timeout = 100 * time.Millisecond

	client := New(Config{Timeout: 5 * time.Second, MaxRetries: 0, MaxConnsPerHost: 10})
	cb := NewCircuitBreakerClient(client, cfg, testLogger())

	// Trip the breaker.
	for i := 0; i < 3; i++ {
		_, _ = get(t, cb, server.URL)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Let the open timeout elapse so the breaker probes again.
	time.Sleep(150 * time.Millisecond)
	failing.Store(false)

	resp, err := get(t, cb, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"unknown product variant"}}`))
	}))
	defer server.Close()

	cb := newBreaker("catalog-4xx")

	// A missing variant is the caller's problem, not the catalog's health.
	for i := 0; i < 5; i++ {
		resp, err := get(t, cb, server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cb := newBreaker("catalog-ctx")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = cb.Do(ctx, req)
	require.Error(t, err)
}

func TestStateToFloat(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stateToFloat(tt.state), "state %v", tt.state)
	}
}
