package modem

import "errors"

// Sentinel errors for table compilation and loading.
// Use errors.Is() to check for these in calling code.
var (
	// ErrEmptyPattern is returned when a table entry has an empty command pattern.
	ErrEmptyPattern = errors.New("modem: empty command pattern")

	// ErrMultipleArgs is returned when a pattern contains more than one {arg} placeholder.
	ErrMultipleArgs = errors.New("modem: pattern has more than one {arg} placeholder")

	// ErrDuplicatePattern is returned when the same pattern appears twice in a table.
	ErrDuplicatePattern = errors.New("modem: duplicate command pattern")

	// ErrNegativeDelay is returned when a response specifies a negative delay.
	ErrNegativeDelay = errors.New("modem: response delay must be non-negative")

	// ErrInvalidTable is returned when the response table file is not a JSON object
	// of command-to-response mappings.
	ErrInvalidTable = errors.New("modem: invalid response table")
)
