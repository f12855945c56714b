package integration

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// testClient is shared by all integration tests. The timeout is generous
// because the composed stack may be cold on the first request.
var testClient = &http.Client{Timeout: 10 * time.Second}

// baseURL returns the base URL for the service listening on the given port.
func baseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// uniqueUUID returns a random v4 UUID string. Every test acts as its own
// user, so carts never collide between tests or runs.
func uniqueUUID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// skipIfNotRunning probes the liveness endpoint and skips the test when the
// composed stack is not up.
func skipIfNotRunning(t *testing.T, port int) {
	t.Helper()
	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(baseURL(port) + "/health/live")
	if err != nil {
		t.Skipf("service on port %d not reachable (compose stack down?): %v", port, err)
	}
	resp.Body.Close()
}

// request performs one HTTP request and returns the status code plus the
// decoded JSON body. Non-JSON bodies come back under a "raw" key so a failed
// assertion can still print what the service sent.
func request(t *testing.T, method, url string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal %s body: %v", method, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := testClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s %s response: %v", method, url, err)
	}
	if len(raw) == 0 {
		return resp.StatusCode, map[string]any{}
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return resp.StatusCode, map[string]any{"raw": string(raw)}
	}
	return resp.StatusCode, decoded
}

// Verb wrappers keep the flow tests short.

func httpGet(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	return request(t, http.MethodGet, url, nil, nil)
}

func httpGetWithHeaders(t *testing.T, url string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	return request(t, http.MethodGet, url, nil, headers)
}

func httpPostWithHeaders(t *testing.T, url string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	return request(t, http.MethodPost, url, body, headers)
}

func httpPutWithHeaders(t *testing.T, url string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	return request(t, http.MethodPut, url, body, headers)
}

func httpDeleteWithHeaders(t *testing.T, url string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	return request(t, http.MethodDelete, url, nil, headers)
}

// requireStatus fails the test immediately on an unexpected status code.
func requireStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}
}

// extractField walks a decoded JSON object along a dot-separated path,
// returning nil as soon as a segment is missing.
func extractField(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}
	return current
}

// extractString reads a string at the given path, failing the test when the
// field is missing or has another type.
func extractString(t *testing.T, data map[string]any, path string) string {
	t.Helper()
	val := extractField(data, path)
	s, ok := val.(string)
	if !ok {
		t.Fatalf("field %q = %T(%v), want string", path, val, val)
	}
	return s
}

// extractItems reads an array at the given path, typically the cart's items.
func extractItems(t *testing.T, data map[string]any, path string) []any {
	t.Helper()
	val := extractField(data, path)
	arr, ok := val.([]any)
	if !ok {
		t.Fatalf("field %q = %T(%v), want array", path, val, val)
	}
	return arr
}

// itemField reads one field from an element of an items array.
func itemField(t *testing.T, item any, field string) any {
	t.Helper()
	m, ok := item.(map[string]any)
	if !ok {
		t.Fatalf("item = %T, want object", item)
	}
	return m[field]
}
