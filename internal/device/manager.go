package device

import (
	"fmt"
	"os"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

// Manager allocates, reboots and releases Devices. It owns the stable
// symlink path; at any instant exactly one Device is current and
// reachable through it.
//
// All methods are called from the session loop's single thread of
// control, so the manager itself needs no locking; per-Device release
// bookkeeping is still guarded to keep release idempotent from any caller.
type Manager struct {
	linkPath string
	logger   *logging.Logger
}

// NewManager creates a Manager for the given stable symlink path.
func NewManager(linkPath string, logger *logging.Logger) *Manager {
	return &Manager{
		linkPath: linkPath,
		logger:   logger,
	}
}

// LinkPath returns the stable symlink path the manager owns.
func (m *Manager) LinkPath() string {
	return m.linkPath
}

// Open allocates the first Device (generation 1), installs the symlink,
// and writes the boot banner. A client already waiting on the link path
// sees the same power-up transcript as after a reboot.
//
// Returns:
//   - *Device: The live device
//   - error: Fatal; the process cannot continue without a terminal pair
func (m *Manager) Open() (*Device, error) {
	dev, err := m.allocate(1)
	if err != nil {
		return nil, err
	}

	if err := dev.writeBanner(); err != nil {
		m.Release(dev)
		return nil, fmt.Errorf("%w: %w", ErrBannerFailed, err)
	}

	return dev, nil
}

// Reboot performs a full power cycle:
//
//	release current pair -> remove symlink -> allocate new pair ->
//	install symlink -> write boot banner
//
// The symlink is absent between removal and re-creation; a client opening
// it in that window sees "no such device". Nothing else happens inside
// the window, keeping it well under client retry intervals.
//
// Parameters:
//   - current: The device being power-cycled; may be nil on first boot
//
// Returns:
//   - *Device: The replacement device, generation = current+1
//   - error: Fatal host resource failure
func (m *Manager) Reboot(current *Device) (*Device, error) {
	generation := uint64(1)
	if current != nil {
		generation = current.Generation + 1
	}

	m.Release(current)
	m.removeLink()

	next, err := m.allocate(generation)
	if err != nil {
		return nil, err
	}

	if err := next.writeBanner(); err != nil {
		m.Release(next)
		return nil, fmt.Errorf("%w: %w", ErrBannerFailed, err)
	}

	return next, nil
}

// Release closes both sides of a Device's terminal pair.
// Idempotent: releasing an already-released (or nil) Device is a no-op.
func (m *Manager) Release(d *Device) {
	d.release()
}

// Close releases the current device and removes the symlink, best-effort.
// Called once at process shutdown.
func (m *Manager) Close(current *Device) {
	m.Release(current)
	m.removeLink()
}

// allocate requests a fresh PTY pair and points the symlink at its peer.
func (m *Manager) allocate(generation uint64) (*Device, error) {
	controller, peer, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocateFailed, err)
	}

	// Raw mode on the client side. A fresh PTY comes up canonical with
	// echo enabled, which would feed every banner and response line
	// straight back into the controller's read queue.
	if _, err := term.MakeRaw(int(peer.Fd())); err != nil {
		controller.Close() //nolint:errcheck // Cleanup on error path
		peer.Close()       //nolint:errcheck // Cleanup on error path
		return nil, fmt.Errorf("%w: raw mode: %w", ErrAllocateFailed, err)
	}

	pollable, err := pollableFile(controller)
	if err != nil {
		controller.Close() //nolint:errcheck // Cleanup on error path
		peer.Close()       //nolint:errcheck // Cleanup on error path
		return nil, fmt.Errorf("%w: nonblocking controller: %w", ErrAllocateFailed, err)
	}
	controller = pollable

	peerPath := peer.Name()

	if err := m.installLink(peerPath); err != nil {
		controller.Close() //nolint:errcheck // Cleanup on error path
		peer.Close()       //nolint:errcheck // Cleanup on error path
		return nil, err
	}

	m.logger.Debug("device allocated",
		"peer_path", peerPath,
		"generation", generation,
	)

	return &Device{
		Controller: controller,
		PeerPath:   peerPath,
		LinkPath:   m.linkPath,
		Generation: generation,
		peer:       peer,
	}, nil
}

// installLink points the stable symlink at peerPath, replacing any stale
// link left by a previous run.
func (m *Manager) installLink(peerPath string) error {
	if _, err := os.Lstat(m.linkPath); err == nil {
		if err := os.Remove(m.linkPath); err != nil {
			return fmt.Errorf("%w: removing stale link %s: %w", ErrLinkFailed, m.linkPath, err)
		}
	}

	if err := os.Symlink(peerPath, m.linkPath); err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrLinkFailed, m.linkPath, peerPath, err)
	}

	return nil
}

// pollableFile re-registers f with the runtime poller in non-blocking
// mode. pty.Open hands back the controller in blocking mode, where
// SetReadDeadline is accepted but never enforced; the dup-and-rewrap
// gives the session loop deadlines that actually fire.
func pollableFile(f *os.File) (*os.File, error) {
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd) //nolint:errcheck // Cleanup on error path
		return nil, err
	}

	nf := os.NewFile(uintptr(fd), f.Name())
	f.Close() //nolint:errcheck // Replaced by the dup
	return nf, nil
}

// removeLink deletes the symlink if present. Best-effort: a missing or
// undeletable link only gets a log line.
func (m *Manager) removeLink() {
	if _, err := os.Lstat(m.linkPath); err != nil {
		return
	}
	if err := os.Remove(m.linkPath); err != nil {
		m.logger.Warn("could not remove symlink", "path", m.linkPath, "error", err)
	}
}
