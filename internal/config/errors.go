package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrUnknownRegion is returned when --region names neither a built-in
	// preset nor a region defined in the config file.
	ErrUnknownRegion = errors.New("unknown region: not a built-in preset or config-file region")

	// ErrInvalidCellSize is returned when the grid cell size is not positive.
	// A zero cell size would produce an infinite grid.
	ErrInvalidCellSize = errors.New("invalid cell size: must be positive")

	// ErrInvalidWindow is returned when the publication window is not positive.
	ErrInvalidWindow = errors.New("invalid window: must be a positive number of months")

	// ErrInvalidRateLimit is returned when the request interval is negative.
	// Use 0 to disable rate limiting (not recommended against the live API).
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrNoPermitTypes is returned when the permit type filter is empty.
	ErrNoPermitTypes = errors.New("no permit types: at least one type code is required")

	// ErrInvalidPermitTypes is returned when --types contains something
	// that is not an integer type code.
	ErrInvalidPermitTypes = errors.New("invalid permit types: expected comma-separated integer codes")

	// ErrNoBaseURL is returned when the API base URL is empty.
	ErrNoBaseURL = errors.New("no base URL configured")
)
