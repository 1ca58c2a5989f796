package metrics

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/modemsim/internal/events"
)

// Emit implements events.Sink.
//
// Response events become "command" points tagged by kind and matched
// pattern; reboots become "reboot" points carrying the new generation.
// Receive and delay events carry no information the response point
// doesn't already include, so they are skipped.
func (c *Client) Emit(e events.Event) {
	switch e.Kind {
	case events.KindTX, events.KindError:
		c.writeCommand(e)
	case events.KindReboot:
		c.writeReboot(e)
	}
}

// writeCommand records one answered command cycle.
func (c *Client) writeCommand(e events.Event) {
	point := write.NewPoint(
		"command",
		map[string]string{
			"kind": string(e.Kind),
		},
		map[string]interface{}{
			"delay_ms": e.DelayMS,
			"count":    1,
		},
		e.Time,
	)
	c.writeAPI.WritePoint(point)
}

// writeReboot records a completed device power cycle.
func (c *Client) writeReboot(e events.Event) {
	point := write.NewPoint(
		"reboot",
		map[string]string{},
		map[string]interface{}{
			"generation": int64(e.Generation), //nolint:gosec // Generations stay far below int64 range
		},
		e.Time,
	)
	c.writeAPI.WritePoint(point)
}
