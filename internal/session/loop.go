package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/modemsim/internal/device"
	"github.com/nerrad567/modemsim/internal/events"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
	"github.com/nerrad567/modemsim/internal/modem"
)

const (
	// defaultReadBuffer is the controller-side read chunk size.
	defaultReadBuffer = 1024

	// readPollInterval bounds each blocking read so context cancellation
	// is observed without a second goroutine.
	readPollInterval = 500 * time.Millisecond

	// transientRetryDelay is the pause after a transient read failure
	// (peer side closed and not yet reopened).
	transientRetryDelay = 50 * time.Millisecond
)

// Lifecycle is the device manager surface the loop needs.
// *device.Manager satisfies it.
type Lifecycle interface {
	Reboot(current *device.Device) (*device.Device, error)
}

// Config holds the dependencies for a Loop.
type Config struct {
	Table   *modem.Table
	Devices Lifecycle
	Device  *device.Device
	Sink    events.Sink
	Logger  *logging.Logger

	// ReadBuffer overrides the read chunk size; 0 means the default.
	ReadBuffer int
}

// Loop is the session state machine. One Loop exists per process; it
// survives reboots by swapping its device reference.
type Loop struct {
	table      *modem.Table
	devices    Lifecycle
	sink       events.Sink
	logger     *logging.Logger
	readBuffer int

	// mu guards the fields below: the loop goroutine writes them, the
	// API reads them.
	mu        sync.RWMutex
	dev       *device.Device
	commands  uint64
	startedAt time.Time
}

// Status is a point-in-time snapshot of the session for observability.
type Status struct {
	Generation uint64    `json:"generation"`
	PeerPath   string    `json:"peer_path"`
	LinkPath   string    `json:"link_path"`
	Commands   uint64    `json:"commands_served"`
	StartedAt  time.Time `json:"started_at"`
}

// New creates a Loop. The device reference is the generation-1 device
// from the lifecycle manager's Open.
func New(cfg Config) *Loop {
	sink := cfg.Sink
	if sink == nil {
		sink = events.Multi()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	readBuffer := cfg.ReadBuffer
	if readBuffer <= 0 {
		readBuffer = defaultReadBuffer
	}

	return &Loop{
		table:      cfg.Table,
		devices:    cfg.Devices,
		sink:       sink,
		logger:     logger,
		readBuffer: readBuffer,
		dev:        cfg.Device,
		startedAt:  time.Now().UTC(),
	}
}

// Device returns the current device.
func (l *Loop) Device() *device.Device {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dev
}

// Status returns a snapshot of the session state.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Status{
		Generation: l.dev.Generation,
		PeerPath:   l.dev.PeerPath,
		LinkPath:   l.dev.LinkPath,
		Commands:   l.commands,
		StartedAt:  l.startedAt,
	}
}

// Run executes the session loop until ctx is cancelled or a fatal device
// failure occurs.
//
// Recoverable conditions (unknown commands, transient read failures from
// a closed peer) never stop the loop; only host resource failures during
// a reboot do.
//
// Parameters:
//   - ctx: Cancelled to stop the loop
//
// Returns:
//   - error: ctx.Err() on shutdown, or the fatal reboot failure
func (l *Loop) Run(ctx context.Context) error {
	buf := make([]byte, l.readBuffer)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn := l.Device().Controller

		// Deadline-bounded read: wakes the loop to notice cancellation.
		_ = conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, err := conn.Read(buf)

		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending, err = l.drain(ctx, pending)
			if err != nil {
				return err
			}
			continue
		}

		switch {
		case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
			// Zero-byte read or poll timeout: keep waiting. A virtual
			// terminal's peer can be closed and reopened by clients
			// without that ending the protocol.
		case errors.Is(err, io.EOF):
			// Same: peer closed, a new client may attach.
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Debug("transient read failure", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(transientRetryDelay):
			}
		}
	}
}

// drain processes every complete line in pending and returns the
// remainder. After a reboot the remainder is always empty: leftover bytes
// belonged to a connection that no longer exists.
func (l *Loop) drain(ctx context.Context, pending []byte) ([]byte, error) {
	for {
		i := bytes.IndexAny(pending, "\r\n")
		if i < 0 {
			return pending, nil
		}

		line := strings.TrimSpace(string(pending[:i]))
		pending = pending[i+1:]
		if line == "" {
			continue
		}

		rebooted, err := l.dispatch(ctx, line)
		if err != nil {
			return nil, err
		}
		if rebooted {
			return nil, nil
		}
	}
}

// dispatch resolves one command line and produces its effect: a delayed
// response, or a full device reboot.
func (l *Loop) dispatch(ctx context.Context, line string) (rebooted bool, err error) {
	dev := l.Device()

	rx := events.New(events.KindRX)
	rx.Line = line
	rx.Generation = dev.Generation
	l.sink.Emit(rx)

	res := l.table.Resolve(line)
	if res.Reboot {
		return true, l.reboot(dev)
	}

	if res.Response.Delay > 0 {
		ev := events.New(events.KindDelay)
		ev.Line = line
		ev.DelayMS = res.Response.Delay.Milliseconds()
		ev.Generation = dev.Generation
		l.sink.Emit(ev)

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(res.Response.Delay):
		}
	}

	reply := strings.Join(res.Render(), "\r\n") + "\r\n"
	if _, err := io.WriteString(dev.Controller, reply); err != nil {
		// The client side may have vanished mid-response; the next read
		// iteration handles reattachment.
		l.logger.Warn("response write failed", "line", line, "error", err)
	}

	l.mu.Lock()
	l.commands++
	l.mu.Unlock()

	kind := events.KindTX
	if res.Command == "" {
		kind = events.KindError
	}
	tx := events.New(kind)
	tx.Line = line
	tx.Reply = strings.Join(res.Render(), "\n")
	tx.DelayMS = res.Response.Delay.Milliseconds()
	tx.Generation = dev.Generation
	l.sink.Emit(tx)

	return false, nil
}

// reboot runs the device power cycle and installs the replacement.
func (l *Loop) reboot(current *device.Device) error {
	next, err := l.devices.Reboot(current)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.dev = next
	l.commands++
	l.mu.Unlock()

	l.logger.Info("device rebooted",
		"generation", next.Generation,
		"peer_path", next.PeerPath,
	)

	ev := events.New(events.KindReboot)
	ev.Generation = next.Generation
	ev.PeerPath = next.PeerPath
	l.sink.Emit(ev)

	return nil
}
