// Package api is the HTTP client for the Bygglovskartan permit map API.
//
// The API has two endpoints: a bounding-box location query returning
// permit markers (possibly truncated/clustered for large boxes), and a
// per-id detail endpoint returning the full permit feature. Every call
// goes through the client's rate limiter first.
package api
