package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
	// and no journal file exists.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilReport is returned when a nil report is saved.
	ErrNilReport = errors.New("report is nil")
)
