// Package events defines the session event stream.
//
// The session loop emits one Event per protocol step: a received line,
// a transmitted response, an applied delay, a device reboot. Consumers
// implement Sink; the loop fans out to every configured sink (structured
// log, transcript journal, MQTT publisher, metrics writer, WebSocket hub).
//
// Sinks run on the session loop's single thread of control and must not
// block: anything slow buffers internally or drops.
package events
