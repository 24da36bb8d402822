package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Processor consumes a key produced by a preprocessor.
// It runs on its own goroutine and may call c.Visit to schedule more fetches.
type Processor[S, K any] func(ctx context.Context, vc *Context[S], c *Crawler[S], key K)

// continuation is a processor already bound to its page context and key.
type continuation[S any] func(ctx context.Context, c *Crawler[S])

// ElementHandler handles elements matched by a selector.
// Build one with OnElement.
type ElementHandler[S any] struct {
	prepare func(vc *Context[S], el *Element) (continuation[S], bool)
}

// ResponseHandler handles every successfully fetched page.
// Build one with OnPage.
type ResponseHandler[S any] struct {
	prepare func(vc *Context[S], r *Respond) (continuation[S], bool)
}

// OnElement binds a preprocessor and a processor into an ElementHandler.
//
// pre runs synchronously during dispatch, once per matched element, and must
// be cheap. When it returns true, proc is launched asynchronously with the
// key. The key type K is checked at compile time.
func OnElement[S, K any](pre func(vc *Context[S], el *Element) (K, bool), proc Processor[S, K]) ElementHandler[S] {
	if pre == nil || proc == nil {
		return ElementHandler[S]{}
	}
	return ElementHandler[S]{
		prepare: func(vc *Context[S], el *Element) (continuation[S], bool) {
			key, ok := pre(vc, el)
			if !ok {
				return nil, false
			}
			return func(ctx context.Context, c *Crawler[S]) {
				proc(ctx, vc, c, key)
			}, true
		},
	}
}

// OnPage binds a preprocessor and a processor into a ResponseHandler.
// pre sees the materialized response; everything else works as in OnElement.
func OnPage[S, K any](pre func(vc *Context[S], r *Respond) (K, bool), proc Processor[S, K]) ResponseHandler[S] {
	if pre == nil || proc == nil {
		return ResponseHandler[S]{}
	}
	return ResponseHandler[S]{
		prepare: func(vc *Context[S], r *Respond) (continuation[S], bool) {
			key, ok := pre(vc, r)
			if !ok {
				return nil, false
			}
			return func(ctx context.Context, c *Crawler[S]) {
				proc(ctx, vc, c, key)
			}, true
		},
	}
}

// selectorBinding is a compiled selector and its handler.
type selectorBinding[S any] struct {
	pattern string
	matcher cascadia.Selector
	handler ElementHandler[S]
}

// Handlers collects handler registrations for a crawl unit.
//
// Selectors are compiled when they are registered. A pattern that does not
// compile is recorded and returned by Err; NewCrawler and NewCollector refuse
// to build from a Handlers with a recorded error, so a bad selector never
// reaches dispatch.
//
// Design decision: registration methods return the receiver instead of an
// error so unit definitions read as a single chain. The error is still
// surfaced before any request is sent.
type Handlers[S any] struct {
	selectors []selectorBinding[S]
	responses []ResponseHandler[S]
	err       error
}

// NewHandlers returns an empty registry.
func NewHandlers[S any]() *Handlers[S] {
	return &Handlers[S]{}
}

// OnSelector registers handler for every element matching the CSS pattern.
func (h *Handlers[S]) OnSelector(pattern string, handler ElementHandler[S]) *Handlers[S] {
	matcher, err := cascadia.Compile(pattern)
	if err != nil {
		h.err = errors.Join(h.err, fmt.Errorf("%w %q: %w", ErrInvalidSelector, pattern, err))
		return h
	}
	if handler.prepare == nil {
		h.err = errors.Join(h.err, fmt.Errorf("%w: selector %q", ErrNilHandler, pattern))
		return h
	}
	h.selectors = append(h.selectors, selectorBinding[S]{
		pattern: pattern,
		matcher: matcher,
		handler: handler,
	})
	return h
}

// OnResponse registers handler for every successfully fetched page.
// Response handlers run before selector handlers.
func (h *Handlers[S]) OnResponse(handler ResponseHandler[S]) *Handlers[S] {
	if handler.prepare == nil {
		h.err = errors.Join(h.err, fmt.Errorf("%w: response handler #%d", ErrNilHandler, len(h.responses)+1))
		return h
	}
	h.responses = append(h.responses, handler)
	return h
}

// Err returns every registration error recorded so far, or nil.
func (h *Handlers[S]) Err() error {
	return h.err
}

// Patterns returns the registered selector patterns in registration order.
func (h *Handlers[S]) Patterns() []string {
	patterns := make([]string, len(h.selectors))
	for i, b := range h.selectors {
		patterns[i] = b.pattern
	}
	return patterns
}

// registry is the frozen form of Handlers held by a Crawler.
type registry[S any] struct {
	selectors []selectorBinding[S]
	responses []ResponseHandler[S]
}

func (h *Handlers[S]) freeze() registry[S] {
	return registry[S]{
		selectors: append([]selectorBinding[S](nil), h.selectors...),
		responses: append([]ResponseHandler[S](nil), h.responses...),
	}
}
