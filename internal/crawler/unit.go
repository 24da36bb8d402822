package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/harvester/internal/config"
)

// Unit declares one crawl: where it starts, how wide it may run, and which
// handlers it binds.
type Unit[S any] struct {
	// Name identifies the unit in logs, reports and configuration files.
	Name string

	// StartingAddress is the absolute http(s) URL of the seed page.
	StartingAddress string

	// Concurrency is the permit pool size. Zero means config.DefaultConcurrency.
	Concurrency int

	// UserAgent is sent with every request. Empty means config.DefaultUserAgent.
	UserAgent string

	// Register adds the unit's handlers. It is called exactly once, by
	// NewCollector.
	Register func(h *Handlers[S])

	// State is shared by every handler of the unit.
	State S

	// Revisit decides whether repeated addresses are fetched again.
	Revisit RevisitPolicy

	// RequestsPerSecond throttles fetches when positive.
	RequestsPerSecond float64

	// Burst is the throttle burst size. Zero means 1.
	Burst int
}

// WithOverrides returns a copy of u with the non-zero fields of o applied.
func (u Unit[S]) WithOverrides(o config.UnitConfig) Unit[S] {
	if o.StartingAddress != "" {
		u.StartingAddress = o.StartingAddress
	}
	if o.Concurrency > 0 {
		u.Concurrency = o.Concurrency
	}
	if o.UserAgent != "" {
		u.UserAgent = o.UserAgent
	}
	if o.Dedupe != nil {
		if *o.Dedupe {
			u.Revisit = SkipVisited
		} else {
			u.Revisit = AllowRevisit
		}
	}
	if o.RequestsPerSecond > 0 {
		u.RequestsPerSecond = o.RequestsPerSecond
	}
	if o.Burst > 0 {
		u.Burst = o.Burst
	}
	return u
}

// parseStartingAddress validates a seed address.
func parseStartingAddress(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidStartURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStartURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must use http or https", ErrInvalidStartURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidStartURL, raw)
	}
	return u, nil
}
