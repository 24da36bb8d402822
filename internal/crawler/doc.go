// Package crawler implements the crawl engine: bounded-concurrency fetch
// scheduling with retry, response materialization, and the two-stage
// extraction/dispatch pipeline that binds selectors to asynchronous
// continuations.
//
// # Architecture
//
// A Collector couples a Crawler with a starting address. The Crawler owns a
// permit pool (golang.org/x/sync/semaphore) that bounds in-flight fetches,
// the HTTP client, and an immutable handler registry built once from a
// Handlers builder.
//
// Each visit goes through the same steps:
//  1. Acquire a permit (the only backpressure point)
//  2. GET the address, retrying under exponential backoff
//  3. Materialize the response into a Respond (charset-decoded text)
//  4. Parse the text into an HTML document
//  5. Run response handlers, then selector handlers, in registration order
//  6. Release the permit
//
// A handler is a pair: a synchronous preprocessor that extracts an optional
// typed key, and a processor that runs on its own goroutine when a key is
// present. Processors may call Visit again; those visits compete for the
// same permit pool.
//
// # Quiescence
//
// Every processor and asynchronous visit is launched through the crawler's
// task group, which counts it before the goroutine starts. Collector.Start
// returns once that count drops to zero, so a child visit that has been
// spawned but has not reached its permit yet still holds the crawl open.
//
// # Usage
//
//	h := crawler.NewHandlers[*State]()
//	h.OnSelector("h3 > a", crawler.OnElement(
//		func(vc *crawler.Context[*State], el *crawler.Element) (*url.URL, bool) {
//			return vc.ParseHref(el)
//		},
//		func(ctx context.Context, _ *crawler.Context[*State], c *crawler.Crawler[*State], u *url.URL) {
//			_ = c.Visit(ctx, u, model.Index())
//		},
//	))
package crawler
