package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// HTTPTestServer creates a test HTTP server with custom handler
func HTTPTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// MockHTTPResponse creates a mock HTTP handler that returns the given response
func MockHTTPResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		io.WriteString(w, body)
	}
}

// MockHTTPEndpoints creates a mock HTTP handler with different responses for different paths
func MockHTTPEndpoints(endpoints map[string]Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if endpoint, ok := endpoints[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(endpoint.Status)
			io.WriteString(w, endpoint.Body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

// RequestCounter counts requests per path before delegating to next
type RequestCounter struct {
	mu     sync.Mutex
	counts map[string]int
	next   http.HandlerFunc
}

func NewRequestCounter(next http.HandlerFunc) *RequestCounter {
	return &RequestCounter{counts: make(map[string]int), next: next}
}

func (c *RequestCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.counts[r.URL.Path]++
	c.mu.Unlock()
	c.next(w, r)
}

// Count returns the number of requests seen for path
func (c *RequestCounter) Count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

// Total returns the number of requests seen across all paths
func (c *RequestCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}
