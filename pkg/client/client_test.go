package client

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Sternrassler/covid-graph/internal/testutil"
	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/Sternrassler/covid-graph/pkg/ratelimit"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string, tracker *ratelimit.Tracker) *Client {
	t.Helper()

	cfg := DefaultConfig("TestApp/1.0.0 (test@example.com)")
	cfg.BaseURL = baseURL
	cfg.Timeout = 500 * time.Millisecond
	cfg.Tracker = tracker

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0"),
			expectError: false,
		},
		{
			name: "empty base url",
			config: Config{
				UserAgent: "TestApp/1.0.0",
				Timeout:   time.Second,
			},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name: "relative base url",
			config: Config{
				BaseURL:   "/v1",
				UserAgent: "TestApp/1.0.0",
				Timeout:   time.Second,
			},
			expectError: true,
			errorMsg:    `base url must be absolute (got "/v1")`,
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: DefaultBaseURL,
				Timeout: time.Second,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL:   DefaultBaseURL,
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "timeout must be positive (got 0s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0.0")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.UserAgent != "TestApp/1.0.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
}

func TestClient_Config(t *testing.T) {
	tracker := ratelimit.NewTracker(ratelimit.NewMemoryStore(), ratelimit.DefaultConfig(), zerolog.Nop())
	c := newTestClient(t, "http://127.0.0.1:8080", tracker)

	got := c.Config()
	if got.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("BaseURL = %q", got.BaseURL)
	}
	if got.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", got.Timeout)
	}
	if got.Tracker != tracker {
		t.Error("Tracker not kept")
	}
}

func TestClassifyError(t *testing.T) {
	client := &Client{logger: zerolog.Nop()}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{name: "network error", err: context.DeadlineExceeded, expected: ErrorClassNetwork},
		{name: "success 200", statusCode: 200, expected: ""},
		{name: "no content 204", statusCode: 204, expected: ErrorClassNoData},
		{name: "redirect 304", statusCode: 304, expected: ErrorClassUnexpected},
		{name: "client error 400", statusCode: 400, expected: ErrorClassClient},
		{name: "client error 404", statusCode: 404, expected: ErrorClassClient},
		{name: "rate limit 429", statusCode: 429, expected: ErrorClassRateLimit},
		{name: "server error 500", statusCode: 500, expected: ErrorClassServer},
		{name: "server error 503", statusCode: 503, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.classifyError(tt.statusCode, tt.err); got != tt.expected {
				t.Errorf("classifyError() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchPage_SendsQueryParameters(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages(testutil.NewDataPage(), testutil.NewDataPage(
		query.RawEntry{Date: "2021-01-01", DataCount: testutil.Count(1)},
	))

	client := newTestClient(t, mock.URL(), nil)
	structure := query.BuildStructure(query.DataCases, query.CountNew, []string{"Wales"})

	if _, err := client.FetchPage(context.Background(), "areaType=nation;areaName=Wales", structure, 2); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	queries := mock.GetQueries()
	if len(queries) != 1 {
		t.Fatalf("requests = %d, want 1", len(queries))
	}
	q := queries[0]
	if got := q.Get("filters"); got != "areaType=nation;areaName=Wales" {
		t.Errorf("filters = %q", got)
	}
	if got := q.Get("structure"); got != `{"date":"date","dataCount":"newCasesByPublishDate"}` {
		t.Errorf("structure = %q", got)
	}
	if got := q.Get("page"); got != "2" {
		t.Errorf("page = %q, want 2", got)
	}
	if got := mock.LastRequestHeader.Get("User-Agent"); got != "TestApp/1.0.0 (test@example.com)" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestFetchPage_DecodesEntriesAndCursor(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages(
		testutil.NewDataPage(
			query.RawEntry{Date: "2021-01-02", AreaName: "England", DataCount: testutil.Count(10)},
			query.RawEntry{Date: "2021-01-01", AreaName: "Wales", DataCount: nil},
		),
		testutil.NewDataPage(),
	)

	client := newTestClient(t, mock.URL(), nil)
	structure := query.BuildStructure(query.DataCases, query.CountNew, []string{"England", "Wales"})

	page, err := client.FetchPage(context.Background(), "areaType=nation", structure, 1)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(page.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(page.Entries))
	}
	if page.Entries[0].AreaName != "England" || *page.Entries[0].DataCount != 10 {
		t.Errorf("first entry = %+v", page.Entries[0])
	}
	if page.Entries[1].DataCount != nil {
		t.Errorf("null dataCount decoded as %v", *page.Entries[1].DataCount)
	}
	if page.Next == "" {
		t.Error("Next cursor should be set when another page exists")
	}

	last, err := client.FetchPage(context.Background(), "areaType=nation", structure, 2)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if last.Next != "" {
		t.Errorf("Next = %q on last page, want empty", last.Next)
	}
}

func TestFetchPage_ErrorOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		page      testutil.MockPage
		wantClass ErrorClass
		wantIs    error
	}{
		{
			name:      "no content",
			page:      testutil.NewNoContentPage(),
			wantClass: ErrorClassNoData,
			wantIs:    query.ErrNoData,
		},
		{
			name:      "server error",
			page:      testutil.NewServerErrorPage(),
			wantClass: ErrorClassServer,
		},
		{
			name:      "rate limited",
			page:      testutil.NewRateLimitPage("30"),
			wantClass: ErrorClassRateLimit,
			wantIs:    ErrRateLimited,
		},
		{
			name:      "malformed body",
			page:      testutil.MockPage{StatusCode: 200, Body: `{"data": [`},
			wantClass: ErrorClassDecode,
		},
		{
			name:      "timeout",
			page:      testutil.NewSlowPage(2 * time.Second),
			wantClass: ErrorClassNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetPages(tt.page)

			client := newTestClient(t, mock.URL(), nil)
			structure := query.BuildStructure(query.DataCases, query.CountNew, []string{query.OverviewAreaName})

			page, err := client.FetchPage(context.Background(), "areaType=overview", structure, 1)
			if err == nil {
				t.Fatalf("FetchPage() = %+v, want error", page)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError: %v", err, err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if Class(err) != tt.wantClass {
				t.Errorf("Class() = %q, want %q", Class(err), tt.wantClass)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

func TestFetchPage_RecordsCooldown(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages(testutil.NewRateLimitPage("120"))

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := ratelimit.NewMemoryStore()
	tracker := ratelimit.NewTracker(store, ratelimit.Config{MaxWait: time.Second}, logger)
	client := newTestClient(t, mock.URL(), tracker)
	structure := query.BuildStructure(query.DataCases, query.CountNew, []string{query.OverviewAreaName})
	ctx := context.Background()

	if _, err := client.FetchPage(ctx, "areaType=overview", structure, 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("FetchPage() error = %v, want ErrRateLimited", err)
	}

	state, err := store.Get(ctx)
	if err != nil || state == nil {
		t.Fatalf("cool-down not stored: state=%v err=%v", state, err)
	}

	// The next request is refused locally without reaching the server.
	before := mock.GetRequestCount()
	_, err = client.FetchPage(ctx, "areaType=overview", structure, 1)
	if !errors.Is(err, ratelimit.ErrBlocked) {
		t.Errorf("FetchPage() during cool-down error = %v, want ErrBlocked", err)
	}
	if mock.GetRequestCount() != before {
		t.Error("request reached the server during cool-down")
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 204,
				ErrorClass: ErrorClassNoData,
				Message:    "204 No Content",
				Err:        query.ErrNoData,
			},
			expected: "API no_data error (status 204): 204 No Content: no data available for the selected parameters",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "500 Internal Server Error",
			},
			expected: "API server error (status 500): 500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClass_NonAPIError(t *testing.T) {
	if got := Class(errors.New("boom")); got != "" {
		t.Errorf("Class() = %q, want empty", got)
	}
}
