package modem

import (
	"strconv"
	"strings"
	"time"
)

// Protocol result texts, per the Hayes command set.
const (
	ResponseOK    = "OK"
	ResponseError = "ERROR"
)

// Built-in commands, always recognised regardless of table contents.
// The name part is matched case-insensitively.
const (
	// cmdDelayPrefix introduces AT+DELAY=<ms>: acknowledge with OK after
	// the requested delay.
	cmdDelayPrefix = "AT+DELAY="

	// cmdReboot is the full-device-reboot trigger.
	cmdReboot = "AT+CFUN=1,1"
)

// Resolution is the outcome of resolving one command line.
//
// Exactly one of two shapes is produced: the reboot sentinel
// (Reboot == true, no response to transmit), or a response to send
// after the configured delay.
type Resolution struct {
	// Reboot signals the session loop to run the device reboot cycle
	// instead of transmitting anything.
	Reboot bool

	// Response is what to transmit. Zero-valued when Reboot is set.
	Response Response

	// Command is the pattern that matched, or "" when no entry applied
	// (the fixed ERROR response).
	Command string

	// Arg is the captured placeholder value; meaningful when Captured is set.
	Arg string

	// Captured reports whether the matched pattern had an {arg} slot.
	Captured bool
}

// errorResolution is the fixed reply for anything unrecognised.
// Not a failure: the matcher never raises.
func errorResolution() Resolution {
	return Resolution{Response: Response{Lines: []string{ResponseError}}}
}

// Resolve finds the response for a command line.
//
// Precedence: built-ins, then exact literal entries, then placeholder
// entries in insertion order. A line matching nothing yields the ERROR
// response with zero delay.
//
// Parameters:
//   - line: The command line, already stripped of its terminator
//
// Returns:
//   - Resolution: Always valid; never an error
func (t *Table) Resolve(line string) Resolution {
	if res, ok := resolveBuiltin(line); ok {
		return res
	}

	// Exact literals win over any placeholder pattern.
	for _, e := range t.entries {
		if e.compiled.hasArg {
			continue
		}
		if _, ok := e.compiled.match(line); ok {
			return Resolution{Response: e.Response, Command: e.Pattern}
		}
	}

	// Placeholder patterns, first configured wins.
	for _, e := range t.entries {
		if !e.compiled.hasArg {
			continue
		}
		if arg, ok := e.compiled.match(line); ok {
			return Resolution{
				Response: e.Response,
				Command:  e.Pattern,
				Arg:      arg,
				Captured: true,
			}
		}
	}

	return errorResolution()
}

// resolveBuiltin checks the two reserved commands.
func resolveBuiltin(line string) (Resolution, bool) {
	if strings.EqualFold(line, cmdReboot) {
		return Resolution{Reboot: true, Command: cmdReboot}, true
	}

	if len(line) >= len(cmdDelayPrefix) && strings.EqualFold(line[:len(cmdDelayPrefix)], cmdDelayPrefix) {
		ms, err := strconv.Atoi(line[len(cmdDelayPrefix):])
		if err != nil || ms < 0 {
			// Malformed delay argument is a protocol mismatch.
			return errorResolution(), true
		}
		return Resolution{
			Response: Response{
				Lines: []string{ResponseOK},
				Delay: time.Duration(ms) * time.Millisecond,
			},
			Command: cmdDelayPrefix + ArgToken,
		}, true
	}

	return Resolution{}, false
}

// Render returns the response lines with the captured argument substituted
// for every {arg} occurrence. Entries without a capture slot are returned
// as configured, braces and all.
func (r Resolution) Render() []string {
	if !r.Captured {
		return r.Response.Lines
	}

	lines := make([]string, len(r.Response.Lines))
	for i, line := range r.Response.Lines {
		lines[i] = strings.ReplaceAll(line, ArgToken, r.Arg)
	}
	return lines
}
