// Package report renders crawl reports.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for tooling, optionally wrapped with the tool version
//   - MarkdownWriter: Markdown with a mermaid chart of visit outcomes
//
// Writers implement the Writer interface so the CLI can compose them with
// MultiWriter.
package report
