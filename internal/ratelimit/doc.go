// Package ratelimit enforces a minimum interval between remote requests.
// The limiter is an explicit owned object rather than module-level state,
// so independent crawls cannot interfere and tests can substitute a fake
// clock.
package ratelimit
