// Package crawler walks a region cell by cell: it partitions the
// region's bounding box into a grid, runs a location query per cell,
// and fetches the detail record for every returned marker. Failures at
// either step are skipped, never retried, and never abort the crawl.
package crawler
