// Package pagination walks the cursor-paginated /v1/data endpoint.
//
// The API answers each page with a pagination.next cursor that is null on the
// last page, so pages are requested strictly in sequence: page 1, page 2, and
// so on until the cursor runs out or the server answers 204 No Content.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(apiClient, pagination.DefaultConfig())
//	entries, err := fetcher.FetchAll(ctx, spec.Filter(), spec.Structure())
//
// The fetcher:
//   - Bounds every page request with Config.PageTimeout
//   - Concatenates entries in page order
//   - Stops on the first failed page and returns what it already has
//   - Never retries a page
//
// A failed page is not retried, so a transient error mid-walk yields a
// truncated series. Callers that need complete data should compare the last
// date they received with what they expect and run the query again.
package pagination
