package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a session event.
type Kind string

// Event kinds emitted by the session loop.
const (
	// KindRX is a complete command line received from the client.
	KindRX Kind = "rx"

	// KindTX is a response written back to the client.
	KindTX Kind = "tx"

	// KindDelay is an artificial latency applied before a response.
	KindDelay Kind = "delay"

	// KindReboot is a completed device reboot cycle.
	KindReboot Kind = "reboot"

	// KindError is a recoverable protocol mismatch (ERROR response sent).
	KindError Kind = "error"
)

// Event is a single observable step in the session.
//
// Fields are populated per kind: Line for rx/error, Line+Reply+DelayMS for
// tx, DelayMS for delay, Generation+PeerPath for reboot.
type Event struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Line       string    `json:"line,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	DelayMS    int64     `json:"delay_ms,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	PeerPath   string    `json:"peer_path,omitempty"`
}

// New creates an Event of the given kind with a fresh ID and timestamp.
func New(kind Kind) Event {
	return Event{
		ID:   uuid.NewString(),
		Time: time.Now().UTC(),
		Kind: kind,
	}
}

// Sink consumes session events.
//
// Emit is called from the session loop's single thread; implementations
// must return promptly and never panic the loop.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// multiSink fans out events to several sinks in order.
type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi combines sinks into one. Nil sinks are skipped, so optional
// consumers can be passed unconditionally.
func Multi(sinks ...Sink) Sink {
	active := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return active
}
