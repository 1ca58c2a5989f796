package device

import (
	"io"
	"sync"
	"time"
)

// Conn is the controller side of a terminal pair as seen by the session
// loop. *os.File satisfies it; tests substitute an in-memory fake.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Device is one incarnation of the virtual terminal pair.
//
// Generation increases by exactly 1 per reboot and exists for
// observability only; no protocol logic reads it.
type Device struct {
	// Controller is the simulator-driven side of the pair.
	Controller Conn

	// PeerPath is the client-facing device path (changes every reboot).
	PeerPath string

	// LinkPath is the stable symlink pointing at PeerPath.
	LinkPath string

	// Generation identifies this incarnation, starting at 1.
	Generation uint64

	// peer keeps the client-facing side open so the path stays allocated.
	peer io.Closer

	mu       sync.Mutex
	released bool
}

// release closes both sides of the pair. Idempotent: a second call is a
// no-op, not an error.
func (d *Device) release() {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true

	if d.Controller != nil {
		d.Controller.Close() //nolint:errcheck // Handles are being discarded
	}
	if d.peer != nil {
		d.peer.Close() //nolint:errcheck // Handles are being discarded
	}
}

// Released reports whether both sides have been closed.
func (d *Device) Released() bool {
	if d == nil {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// bootBanner is the fixed power-cycle transcript written to the controller
// side after every reboot, so an attached client observes a believable
// modem start-up. The leading empty line mirrors real modems, which emit
// CRLF before the first result.
var bootBanner = []string{"", "RDY", "+CFUN: 1", "+CPIN: READY", "SMS Ready"}

// writeBanner writes the boot banner, each line CRLF-terminated.
func (d *Device) writeBanner() error {
	for _, line := range bootBanner {
		if _, err := io.WriteString(d.Controller, line+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}
