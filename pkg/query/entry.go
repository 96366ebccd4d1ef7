package query

import "errors"

// ErrNoData is wrapped by page fetchers when the API answers 204 No Content.
var ErrNoData = errors.New("no data available for the selected parameters")

// RawEntry is one record from the API.
type RawEntry struct {
	Date string `json:"date"`

	// AreaName is only present when the structure projects it.
	AreaName string `json:"areaName,omitempty"`

	// DataCount is nil when the API reports null.
	DataCount *int64 `json:"dataCount"`
}

// Page is one decoded API response.
type Page struct {
	Entries []RawEntry

	// Next is the server-supplied cursor; empty when there are no more pages.
	Next string
}
