package plugins

import "errors"

var (
	// ErrUnknownUnit is returned when a unit name is not registered.
	ErrUnknownUnit = errors.New("unknown crawl unit")

	// ErrDuplicateUnit is returned when two entries share a name.
	ErrDuplicateUnit = errors.New("duplicate crawl unit")

	// ErrInvalidEntry is returned for an entry without a name or constructor.
	ErrInvalidEntry = errors.New("invalid registry entry")
)
