package device

import "errors"

// Sentinel errors for device lifecycle operations.
// These are host resource failures: callers treat them as fatal.
var (
	// ErrAllocateFailed is returned when the host cannot provide a PTY pair.
	ErrAllocateFailed = errors.New("device: pty allocation failed")

	// ErrLinkFailed is returned when the stable symlink cannot be created.
	ErrLinkFailed = errors.New("device: symlink creation failed")

	// ErrBannerFailed is returned when the boot banner cannot be written
	// to a freshly allocated device.
	ErrBannerFailed = errors.New("device: boot banner write failed")
)
