// Package model defines the data structures shared by the crawl engine and
// its collaborators.
//
// This package contains the following main types:
//   - PageType: why a page is visited (Index, or a News/Person/Report content page)
//   - VisitRecord: the outcome of a single visit, as journaled
//   - Stats: crawl counters
//   - CrawlReport: the summary of one crawl unit run
//
// Design decision: We keep these types in their own package because the
// crawler, database, pipeline and report packages all use them, and
// centralizing them prevents import cycles.
package model
