package metrics

import "errors"

// Sentinel errors for metrics operations.
var (
	// ErrDisabled indicates the metrics integration is disabled in config.
	ErrDisabled = errors.New("metrics: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("metrics: connection failed")
)
