// Package database provides SQLite-based storage for crawled building
// permits and per-run crawl metadata. The database accumulates permits
// across runs so that incremental crawls of overlapping regions build
// up a single deduplicated dataset.
package database
