package device

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	link := filepath.Join(t.TempDir(), "ttyFAKE")
	return NewManager(link, logging.Default())
}

func TestManager_Open(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(dev)

	if dev.Generation != 1 {
		t.Errorf("Generation = %d, want 1", dev.Generation)
	}
	if dev.PeerPath == "" {
		t.Error("PeerPath is empty")
	}

	target, err := os.Readlink(m.LinkPath())
	if err != nil {
		t.Fatalf("Readlink(%s) error = %v", m.LinkPath(), err)
	}
	if target != dev.PeerPath {
		t.Errorf("symlink target = %q, want %q", target, dev.PeerPath)
	}
}

func TestManager_OpenReplacesStaleLink(t *testing.T) {
	m := newTestManager(t)

	// Simulate a link left behind by a crashed previous run.
	if err := os.Symlink("/dev/null", m.LinkPath()); err != nil {
		t.Fatalf("creating stale link: %v", err)
	}

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(dev)

	target, err := os.Readlink(m.LinkPath())
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if target != dev.PeerPath {
		t.Errorf("symlink target = %q, want %q", target, dev.PeerPath)
	}
}

func TestManager_Reboot(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	second, err := m.Reboot(first)
	if err != nil {
		t.Fatalf("Reboot() error = %v", err)
	}
	defer m.Close(second)

	if second.Generation != first.Generation+1 {
		t.Errorf("Generation = %d, want %d", second.Generation, first.Generation+1)
	}
	if second.PeerPath == first.PeerPath {
		t.Errorf("PeerPath unchanged across reboot: %q", second.PeerPath)
	}
	if !first.Released() {
		t.Error("old device not released after reboot")
	}

	target, err := os.Readlink(m.LinkPath())
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if target != second.PeerPath {
		t.Errorf("symlink target = %q, want new peer %q", target, second.PeerPath)
	}
}

func TestManager_SequentialReboots(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Two reboots back to back: exactly one live device at the end and
	// a strictly increasing generation.
	for want := uint64(2); want <= 3; want++ {
		dev, err = m.Reboot(dev)
		if err != nil {
			t.Fatalf("Reboot() error = %v", err)
		}
		if dev.Generation != want {
			t.Errorf("Generation = %d, want %d", dev.Generation, want)
		}
	}
	defer m.Close(dev)

	if dev.Released() {
		t.Error("current device reports released")
	}
}

func TestDevice_ReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	m.Release(dev)
	m.Release(dev) // must not panic or error
	m.Release(nil) // nil-safe

	if !dev.Released() {
		t.Error("device not marked released")
	}
}

func TestManager_CloseRemovesLink(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	m.Close(dev)

	if _, err := os.Lstat(m.LinkPath()); !os.IsNotExist(err) {
		t.Errorf("symlink still present after Close, Lstat err = %v", err)
	}
}

func TestManager_ControllerDoesNotReadOwnOutput(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(dev)

	// Open wrote the boot banner; a further transmission stacks on top.
	if _, err := dev.Controller.Write([]byte("OK\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// With the peer in raw mode nothing is echoed, so the controller's
	// read queue must stay empty until a client writes.
	if err := dev.Controller.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	buf := make([]byte, 256)
	n, err := dev.Controller.Read(buf)
	if n > 0 {
		t.Fatalf("controller read back %q, want nothing", buf[:n])
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Read() error = %v, want deadline exceeded", err)
	}
}

func TestManager_ControllerReadDeadlineFires(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(dev)

	if err := dev.Controller.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	start := time.Now()
	buf := make([]byte, 64)
	_, err = dev.Controller.Read(buf)
	elapsed := time.Since(start)

	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Read() error = %v, want deadline exceeded", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Read() returned after %v, deadline not enforced", elapsed)
	}
}

func TestManager_BannerReachesClient(t *testing.T) {
	m := newTestManager(t)

	dev, err := m.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close(dev)

	client, err := os.OpenFile(dev.PeerPath, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("opening peer path: %v", err)
	}
	defer client.Close()

	if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	var got []byte
	buf := make([]byte, 256)
	for !bytes.Contains(got, []byte("SMS Ready\r\n")) {
		n, err := client.Read(buf)
		if n > 0 {
			got = append(got, buf[:n]...)
			continue
		}
		if err != nil {
			t.Fatalf("client read error = %v, banner so far %q", err, got)
		}
	}

	want := "\r\nRDY\r\n+CFUN: 1\r\n+CPIN: READY\r\nSMS Ready\r\n"
	if string(got) != want {
		t.Errorf("client saw %q, want %q", got, want)
	}
}

// fakeConn records everything written to it.
type fakeConn struct {
	bytes.Buffer
}

func (f *fakeConn) Close() error                      { return nil }
func (f *fakeConn) SetReadDeadline(_ time.Time) error { return nil }

func TestDevice_WriteBanner(t *testing.T) {
	conn := &fakeConn{}
	dev := &Device{Controller: conn, Generation: 2}

	if err := dev.writeBanner(); err != nil {
		t.Fatalf("writeBanner() error = %v", err)
	}

	want := "\r\nRDY\r\n+CFUN: 1\r\n+CPIN: READY\r\nSMS Ready\r\n"
	if got := conn.String(); got != want {
		t.Errorf("banner = %q, want %q", got, want)
	}
}
