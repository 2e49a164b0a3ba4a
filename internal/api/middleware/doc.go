// Package middleware provides gin middleware for the hub's HTTP API.
//
//   - CORS: cross-origin reads with configurable origins (CORS_ALLOW_ORIGINS)
//   - RateLimit: per-IP token bucket, idle clients forgotten after ten minutes
//   - GlobalRateLimit: one token bucket shared by every client
//
// Rejected requests get 429 with a Retry-After header.
package middleware
