// Package api provides the read-only HTTP control surface for modemsim.
//
// Endpoints under /api/v1:
//
//	GET /health     liveness and version
//	GET /status     current generation, device paths, command counter
//	GET /commands   the compiled response table
//	GET /events     recent transcript entries (requires the transcript journal)
//	GET /ws         live event stream over WebSocket
//
// The API observes and never drives: the session loop is the single
// thread of control over the device, so there are no mutating endpoints.
// Reboots are triggered the same way a real modem is rebooted, by
// sending AT+CFUN=1,1 over the serial link.
package api
