// Package report writes crawl output: the deduplicated permit CSV that
// downstream research pipelines consume, and an optional Markdown
// summary of the run for humans.
package report
