// Package ratelimit paces requests to the coronavirus dashboard API and honours
// the cool-down the API announces with 429 Too Many Requests + Retry-After.
//
// Pacing is local (golang.org/x/time/rate). The cool-down is kept in a Store so
// that it survives between runs and is shared between processes when Redis is
// configured.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyThrottleState = "covid:rate_limit:state"
)

// Defaults for cool-down handling.
const (
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter = 60 * time.Second

	// DefaultMaxWait is the longest a request waits for a cool-down to expire
	// before it is refused.
	DefaultMaxWait = 10 * time.Second
)

// ThrottleState is the current cool-down announced by the API.
type ThrottleState struct {
	// BlockedUntil is when requests may resume. Zero means not blocked.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// StatusCode is the response status that triggered the cool-down.
	StatusCode int `json:"status_code"`
}

// IsBlocked reports whether requests must wait at now.
func (s *ThrottleState) IsBlocked(now time.Time) bool {
	return s != nil && now.Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining cool-down, or 0.
func (s *ThrottleState) TimeUntilUnblocked(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter interprets a Retry-After header value, which is either a
// number of seconds or an HTTP date. It falls back to DefaultRetryAfter.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return DefaultRetryAfter
	}

	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}

	return DefaultRetryAfter
}
