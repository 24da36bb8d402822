// Package plugins is the list of crawl units harvester knows how to run.
//
// Units are registered by hand in Default. Each entry carries a
// constructor that applies configuration overrides and returns a
// crawler.Runner, so the CLI never needs to know a unit's state type.
//
// To add a unit, create a subpackage that exposes Name, StartingAddress and
// New in the manner of foo, and append it to Default.
package plugins
