// Package client fetches single pages from the UK coronavirus dashboard API
// with pacing, cool-down tracking and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/Sternrassler/covid-graph/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.coronavirus.data.gov.uk"

	// DataPath is the paginated data endpoint.
	DataPath = "/v1/data"

	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 5 * time.Second
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covid_api_requests_total",
		Help: "Total API page requests by status",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "covid_api_request_duration_seconds",
		Help:    "API page request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covid_api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of page request outcomes.
type ErrorClass string

const (
	// ErrorClassNoData represents 204 No Content.
	ErrorClassNoData ErrorClass = "no_data"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassUnexpected represents any other non-200 status.
	ErrorClassUnexpected ErrorClass = "unexpected"

	// ErrorClassDecode represents a 200 whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API host, e.g. DefaultBaseURL or a test server.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each page request.
	Timeout time.Duration

	// Tracker paces requests and records 429 cool-downs. Optional.
	Tracker *ratelimit.Tracker
}

// DefaultConfig returns the configuration for the public API.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   DefaultTimeout,
	}
}

// Client requests pages from the data endpoint.
type Client struct {
	http    *resty.Client
	tracker *ratelimit.Tracker
	config  Config
	logger  zerolog.Logger
}

type pageBody struct {
	Data       []query.RawEntry `json:"data"`
	Pagination struct {
		Next *string `json:"next"`
	} `json:"pagination"`
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "covid-client").Logger()

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})

	return &Client{
		http:    httpClient,
		tracker: cfg.Tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// FetchPage requests one page of entries.
//
// A 204 response returns an error wrapping query.ErrNoData. Every other
// non-200 response and every transport failure returns an *APIError.
func (c *Client) FetchPage(ctx context.Context, filter string, structure query.Structure, page int) (*query.Page, error) {
	encoded, err := structure.Encode()
	if err != nil {
		return nil, err
	}

	if c.tracker != nil {
		if err := c.tracker.Wait(ctx); err != nil {
			apiErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &APIError{
				ErrorClass: ErrorClassRateLimit,
				Message:    "request not sent",
				Err:        err,
			}
		}
	}

	c.logger.Debug().
		Str("filters", filter).
		Int("page", page).
		Msg("Requesting page")

	startTime := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"filters":   filter,
			"structure": encoded,
			"page":      strconv.Itoa(page),
		}).
		Get(DataPath)
	apiRequestDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		errClass := c.classifyError(0, err)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		apiRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}

	status := resp.StatusCode()
	apiRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	if status != http.StatusOK {
		errClass := c.classifyError(status, nil)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()

		apiErr := &APIError{
			StatusCode: status,
			ErrorClass: errClass,
			Message:    resp.Status(),
		}

		switch errClass {
		case ErrorClassNoData:
			apiErr.Err = query.ErrNoData
		case ErrorClassRateLimit:
			apiErr.Err = ErrRateLimited
			if c.tracker != nil {
				if err := c.tracker.RecordRetryAfter(ctx, status, resp.Header().Get("Retry-After")); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record cool-down")
				}
			}
		}
		return nil, apiErr
	}

	var body pageBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &APIError{
			StatusCode: status,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}

	result := &query.Page{Entries: body.Data}
	if body.Pagination.Next != nil {
		result.Next = *body.Pagination.Next
	}

	c.logger.Debug().
		Int("page", page).
		Int("entries", len(result.Entries)).
		Bool("has_next", result.Next != "").
		Msg("Page received")

	return result, nil
}

// classifyError categorizes an outcome for observability and handling.
func (c *Client) classifyError(statusCode int, err error) ErrorClass {
	if err != nil {
		c.logger.Debug().Str("class", string(ErrorClassNetwork)).Msg("Error classified")
		return ErrorClassNetwork
	}

	var class ErrorClass
	switch {
	case statusCode == http.StatusNoContent:
		class = ErrorClassNoData
	case statusCode == http.StatusTooManyRequests:
		class = ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		class = ErrorClassClient
	case statusCode >= 500:
		class = ErrorClassServer
	case statusCode == http.StatusOK:
		return ""
	default:
		class = ErrorClassUnexpected
	}

	c.logger.Debug().Str("class", string(class)).Msg("Error classified")
	return class
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// restyLogger routes resty's internal logging through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	// Failures are reported by FetchPage itself.
	l.logger.Debug().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
