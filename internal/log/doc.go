// Package log provides slog-based logging for long crawls. Its
// throttling handler collapses the repeated per-marker messages a
// country-scale crawl produces into periodic summaries.
package log
