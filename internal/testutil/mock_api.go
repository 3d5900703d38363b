// Package testutil provides a configurable mock lookup API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock saw for one request.
type RecordedRequest struct {
	Path     string
	Query    url.Values
	Username string
	Password string
	Header   http.Header
}

// MockAPI is a configurable mock lookup server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI creates a new mock server. Unknown paths answer 404.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, _ := r.BasicAuth()

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:     r.URL.Path,
			Query:    r.URL.Query(),
			Username: username,
			Password: password,
			Header:   r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"error":"not-found"}]}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Client returns an HTTP client wired to the mock server.
func (m *MockAPI) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetJSON configures a path to answer status with v encoded as JSON.
func (m *MockAPI) SetJSON(path string, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.SetResponse(path, MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// Requests returns a copy of every recorded request.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsFor returns the recorded requests for one path.
func (m *MockAPI) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func (resp MockResponse) write(w http.ResponseWriter, _ *http.Request) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Handler returns the response as a handler, for composing custom routes.
func (resp MockResponse) Handler() http.HandlerFunc {
	return resp.write
}

// NewJSONResponse creates a standard 200 OK response with quota headers.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":       "application/json",
			"X-Ratelimit-Limit":  "600",
			"X-Ratelimit-Remain": "599",
			"X-Ratelimit-Reset":  "300",
			"X-Ratelimit-Window": "5m",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":       "application/json",
			"X-Ratelimit-Limit":  "600",
			"X-Ratelimit-Remain": "0",
			"X-Ratelimit-Reset":  "300",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": "Invalid Authorization"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"errors":[{"error":"company-profile-not-found"}]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
