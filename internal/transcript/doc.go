// Package transcript persists session events to SQLite.
//
// The journal is append-only: every rx/tx/delay/reboot event the session
// loop emits becomes one row. Test rigs query it after a run to assert on
// exactly what a client sent and what the simulator answered; the control
// API serves recent entries from it.
//
// The Store implements events.Sink, so it plugs straight into the session
// loop's fan-out. Writes are best-effort: a failed insert is logged and
// never disturbs the protocol.
package transcript
