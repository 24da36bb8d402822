// Package main provides the entry point for the harvester CLI.
//
// harvester runs registered crawl units: each unit starts from a seed
// address, fetches pages under a bounded permit pool, and hands the parsed
// documents to the unit's handlers.
//
// Usage:
//
//	harvester crawl [unit...]
//	harvester units
//	harvester history [unit]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
