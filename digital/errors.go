package digital

import "errors"

// Timing-argument validation sentinels. Validation rejects fast: when one
// of these is returned no state has been touched and nothing was started.
var (
	// ErrInvalidInterval rejects non-positive pulse intervals, blink
	// delays, and blink transition counts.
	ErrInvalidInterval = errors.New("digital: interval must be positive")

	// ErrUnsupportedUnit rejects timing units outside the supported
	// millisecond-to-hour range.
	ErrUnsupportedUnit = errors.New("digital: unsupported time unit")
)
