// Package pipeline runs crawl units through a fixed sequence of steps.
//
// A unit run is a Pipeline over a *model.CrawlReport:
//
//	crawl -> journal -> report
//
// CrawlStep starts the unit's Runner and copies its counters and failures
// into the report. JournalStep stores the run summary in the SQLite journal
// and ReportStep renders the report. The last two are final steps: they run
// even when the crawl was cancelled, so a cancelled run is still recorded
// and reported.
//
// BatchProcessor runs many units at once with errgroup.SetLimit. Each unit
// gets a fresh pipeline from a Factory.
package pipeline
