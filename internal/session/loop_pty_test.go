package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/nerrad567/modemsim/internal/device"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
	"github.com/nerrad567/modemsim/internal/modem"
)

// openClient opens a terminal path the way a test client does: with
// O_NONBLOCK so read deadlines work on the returned file.
func openClient(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// readUntil reads from f until the accumulated output contains want.
func readUntil(t *testing.T, f *os.File, want string) string {
	t.Helper()
	if err := f.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	var got []byte
	buf := make([]byte, 512)
	for !bytes.Contains(got, []byte(want)) {
		n, err := f.Read(buf)
		if n > 0 {
			got = append(got, buf[:n]...)
			continue
		}
		if err != nil {
			t.Fatalf("waiting for %q: read error = %v, got so far %q", want, err, got)
		}
	}
	return string(got)
}

// firstResultLine returns the first non-empty line of terminal output.
func firstResultLine(s string) string {
	for _, line := range strings.Split(s, "\r\n") {
		if line != "" {
			return line
		}
	}
	return ""
}

// TestRun_RealTerminalPair drives the loop over an actual PTY through
// the stable symlink: banner on attach, command/response, a full
// AT+CFUN=1,1 power cycle with banner-before-traffic on the new device,
// and a deadline-bounded shutdown.
func TestRun_RealTerminalPair(t *testing.T) {
	link := filepath.Join(t.TempDir(), "ttyFAKE")
	mgr := device.NewManager(link, logging.Default())

	dev, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	table, err := modem.Compile([]modem.RawEntry{
		{Pattern: "AT", Text: "OK"},
		{Pattern: "AT+CGMI", Text: "fake-atc\nOK"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	loop := New(Config{
		Table:   table,
		Devices: mgr,
		Device:  dev,
		Logger:  logging.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not exit after cancellation")
		}
		mgr.Close(loop.Device())
	}()

	client := openClient(t, link)

	banner := readUntil(t, client, "SMS Ready\r\n")
	if got := firstResultLine(banner); got != "RDY" {
		t.Fatalf("first line on attach = %q, want RDY (output %q)", got, banner)
	}

	if _, err := client.Write([]byte("AT+CGMI\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	resp := readUntil(t, client, "OK\r\n")
	if !strings.Contains(resp, "fake-atc\r\n") {
		t.Errorf("response = %q, want fake-atc line", resp)
	}

	// Power cycle. The old descriptor dies with the old pair; the
	// symlink must swing to a fresh device that announces itself
	// before carrying any other traffic.
	oldPeer := loop.Status().PeerPath
	if _, err := client.Write([]byte("AT+CFUN=1,1\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		target, err := os.Readlink(link)
		if err == nil && target != oldPeer {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("symlink still points at %s after reboot", oldPeer)
		}
		time.Sleep(10 * time.Millisecond)
	}

	client2 := openClient(t, link)

	banner2 := readUntil(t, client2, "SMS Ready\r\n")
	if got := firstResultLine(banner2); got != "RDY" {
		t.Fatalf("first line after reboot = %q, want RDY (output %q)", got, banner2)
	}

	if _, err := client2.Write([]byte("AT\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if resp := readUntil(t, client2, "OK\r\n"); !strings.HasSuffix(resp, "OK\r\n") {
		t.Errorf("response after reboot = %q, want trailing OK", resp)
	}

	if gen := loop.Status().Generation; gen != 2 {
		t.Errorf("Generation = %d, want 2", gen)
	}
}

// TestRun_RealDeviceShutdown verifies cancellation interrupts a blocking
// read on an idle real device.
func TestRun_RealDeviceShutdown(t *testing.T) {
	link := filepath.Join(t.TempDir(), "ttyFAKE")
	mgr := device.NewManager(link, logging.Default())

	dev, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer mgr.Close(dev)

	table, err := modem.Compile([]modem.RawEntry{{Pattern: "AT", Text: "OK"}})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	loop := New(Config{
		Table:   table,
		Devices: mgr,
		Device:  dev,
		Logger:  logging.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Let the loop settle into its blocking read before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() still blocked 3s after cancellation")
	}
}
