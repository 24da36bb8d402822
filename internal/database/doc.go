// Package database provides the SQLite journal for harvester.
//
// The journal stores two things:
//   - runs: one row per crawl unit run with its final counters
//   - visits: one row per finished visit, linked to its run
//
// The crawler only writes to the journal. Nothing reads it back to resume a
// crawl; it exists for the history command and for auditing what a unit
// fetched.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// journal is a single file next to the user's data, the driver is CGO-free,
// and WAL mode lets the history command read while a crawl writes.
package database
