// Package session drives the modem's command-response cycle.
//
// A single Loop owns the current device and runs the whole protocol on
// one goroutine: read bytes from the controller side, assemble lines,
// resolve each against the command table, apply the configured delay,
// write the response. The reboot built-in swaps in a fresh device via the
// lifecycle manager, discarding any half-read input from the old one.
//
// The per-command delay deliberately suspends this single goroutine: it
// simulates real modem latency and serializes responses the way a
// half-duplex link would. Reads poll with a short deadline so a cancelled
// context stops the loop promptly.
package session
