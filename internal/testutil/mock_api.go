// Package testutil provides testing utilities for the coronavirus API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
)

// MockPage defines the response for one page number.
type MockPage struct {
	StatusCode int
	Entries    []query.RawEntry
	Headers    map[string]string
	Delay      time.Duration

	// Body overrides the generated JSON body when set.
	Body string
}

// MockAPI is a configurable mock of the /v1/data endpoint.
//
// Page N of a request is served from the N-th configured MockPage. A 200 page
// advertises a next cursor unless it is the last configured page.
type MockAPI struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  []MockPage

	// Tracking
	RequestCount      int
	Queries           []url.Values
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/data", mock.handleData)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Queries = nil
	m.LastRequestHeader = nil
}

// SetPages configures the responses for pages 1..len(pages).
func (m *MockAPI) SetPages(pages ...MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetQueries returns the query strings of all requests in order.
func (m *MockAPI) GetQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.Queries))
	copy(out, m.Queries)
	return out
}

func (m *MockAPI) handleData(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.Queries = append(m.Queries, r.URL.Query())
	m.LastRequestHeader = r.Header.Clone()
	pages := m.pages
	m.mu.Unlock()

	pageNum, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || pageNum < 1 {
		http.Error(w, `{"response":"invalid page"}`, http.StatusBadRequest)
		return
	}
	if pageNum > len(pages) {
		http.Error(w, `{"response":"page out of range"}`, http.StatusNotFound)
		return
	}

	page := pages[pageNum-1]
	if page.Delay > 0 {
		select {
		case <-time.After(page.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range page.Headers {
		w.Header().Set(key, value)
	}

	status := page.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	body := page.Body
	if body == "" && status == http.StatusOK {
		body = pageJSON(r, page.Entries, pageNum, pageNum < len(pages))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

func pageJSON(r *http.Request, entries []query.RawEntry, pageNum int, hasNext bool) string {
	if entries == nil {
		entries = []query.RawEntry{}
	}

	var next *string
	if hasNext {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(pageNum+1))
		cursor := fmt.Sprintf("/v1/data?%s", q.Encode())
		next = &cursor
	}

	payload := map[string]interface{}{
		"length":       len(entries),
		"maxPageLimit": 2500,
		"data":         entries,
		"pagination": map[string]interface{}{
			"current": r.URL.RequestURI(),
			"next":    next,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal mock page: %v", err))
	}
	return string(data)
}

// Count returns a pointer to v for building entries.
func Count(v int64) *int64 {
	return &v
}

// NewDataPage creates a 200 page with the given entries.
func NewDataPage(entries ...query.RawEntry) MockPage {
	return MockPage{
		StatusCode: http.StatusOK,
		Entries:    entries,
	}
}

// NewNoContentPage creates a 204 No Content page.
func NewNoContentPage() MockPage {
	return MockPage{StatusCode: http.StatusNoContent}
}

// NewServerErrorPage creates a 500 Internal Server Error page.
func NewServerErrorPage() MockPage {
	return MockPage{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"response":"Internal server error"}`,
	}
}

// NewRateLimitPage creates a 429 Too Many Requests page.
func NewRateLimitPage(retryAfter string) MockPage {
	return MockPage{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"response":"Too many requests"}`,
		Headers: map[string]string{
			"Retry-After": retryAfter,
		},
	}
}

// NewSlowPage creates a 200 page that responds after delay.
func NewSlowPage(delay time.Duration, entries ...query.RawEntry) MockPage {
	page := NewDataPage(entries...)
	page.Delay = delay
	return page
}
