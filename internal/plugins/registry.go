package plugins

import (
	"fmt"
	"slices"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/plugins/foo"
)

// Constructor builds a unit with configuration overrides applied.
type Constructor func(overrides config.UnitConfig, opts ...crawler.Option) (crawler.Runner, error)

// Entry is one registered crawl unit.
type Entry struct {
	// Name is the unit name used on the command line and in config files.
	Name string

	// Description is a one-line summary for the units command.
	Description string

	// StartingAddress is the seed used when no override is configured.
	StartingAddress string

	// Concurrency is the unit's own permit pool size.
	Concurrency int

	// New constructs the unit.
	New Constructor
}

// Registry is an ordered list of crawl units.
type Registry struct {
	entries []Entry
}

// NewRegistry validates entries and keeps their order.
func NewRegistry(entries ...Entry) (*Registry, error) {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Name == "" || e.New == nil {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidEntry, i)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUnit, e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return &Registry{entries: slices.Clone(entries)}, nil
}

// Default returns the built-in units.
func Default() *Registry {
	return &Registry{entries: []Entry{
		{
			Name:            foo.Name,
			Description:     "naval news headlines from navyrecognition.com",
			StartingAddress: foo.StartingAddress,
			Concurrency:     foo.Concurrency,
			New:             foo.New,
		},
	}}
}

// Entries returns the registered units in registration order.
func (r *Registry) Entries() []Entry {
	return slices.Clone(r.entries)
}

// Names returns the registered unit names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Lookup finds a unit by name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Build constructs the named unit.
func (r *Registry) Build(name string, overrides config.UnitConfig, opts ...crawler.Option) (crawler.Runner, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return e.New(overrides, opts...)
}

// Resolve checks that every name is registered. An empty list selects
// every unit.
func (r *Registry) Resolve(names []string) ([]string, error) {
	if len(names) == 0 {
		return r.Names(), nil
	}
	for _, name := range names {
		if _, ok := r.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownUnit, name, r.Names())
		}
	}
	return names, nil
}
