package config

import "errors"

// Configuration validation errors returned by Validate.
var (
	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidConcurrency is returned when a concurrency override is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrInvalidRateLimit is returned when requests per second is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRetry is returned when retry intervals are not positive,
	// the multiplier is below 1, or the interval cap is below the first wait.
	ErrInvalidRetry = errors.New("invalid retry settings")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --proxy and --embedded-tor are
	// specified.
	ErrConflictingProxy = errors.New("conflicting transports: --proxy and --embedded-tor cannot be used together")

	// ErrInvalidUnitConfig is returned when a unit entry in the configuration
	// file holds a negative value.
	ErrInvalidUnitConfig = errors.New("invalid unit configuration")
)
