// Package main provides the entry point for the bygglovscan CLI.
//
// Bygglovscan collects Swedish building permit announcements from the
// public permit map API into a research-ready CSV dataset.
//
// Usage:
//
//	bygglovscan crawl --region sweden
//	bygglovscan crawl --region stockholm --window 12
//
// See --help for all available options.
package main

// main is the entry point for bygglovscan.
func main() {
	Execute()
}
