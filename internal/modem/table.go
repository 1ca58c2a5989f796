package modem

import (
	"fmt"
	"strings"
	"time"
)

// Response is what the session loop transmits for a matched command.
type Response struct {
	// Lines are the response lines, in order. The session loop terminates
	// each with CRLF on the wire.
	Lines []string

	// Delay is the artificial latency applied before transmission.
	Delay time.Duration
}

// RawEntry is one command-to-response pair as read from the table file,
// before compilation. Order matters: it is the precedence tie-break for
// overlapping placeholder patterns.
type RawEntry struct {
	// Pattern is the command text, optionally containing one {arg} slot.
	Pattern string

	// Text is the response text. Embedded "\n" separates lines. It may
	// contain {arg} and cross-references to other entries.
	Text string

	// DelayMillis is the artificial response latency in milliseconds.
	DelayMillis int
}

// Entry is a compiled table entry.
type Entry struct {
	// Pattern is the raw pattern text as configured.
	Pattern string

	// Response is the compiled response specification.
	Response Response

	compiled pattern
}

// HasArg reports whether the entry's pattern captures an argument.
func (e Entry) HasArg() bool {
	return e.compiled.hasArg
}

// Table is an immutable, insertion-ordered command table.
//
// A Table is built once by Compile (or LoadTable) and never mutated;
// replacing the table wholesale is the only supported form of reload.
type Table struct {
	entries []Entry
}

// Compile builds a Table from raw entries.
//
// Compilation validates each pattern (at most one {arg} slot, no
// duplicates, non-negative delay) and resolves cross-references: a
// response may embed another command's response by writing the other
// command's name lowercased with "+" stripped inside braces, e.g.
// {atcgmi} for AT+CGMI. References are substituted once, in a single
// pass; unresolved braces pass through verbatim.
//
// Parameters:
//   - raw: Ordered command/response pairs from configuration
//
// Returns:
//   - *Table: Compiled table
//   - error: Describing the first invalid entry
func Compile(raw []RawEntry) (*Table, error) {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if seen[r.Pattern] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePattern, r.Pattern)
		}
		seen[r.Pattern] = true
	}

	refs := crossReferences(raw)

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		p, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, err
		}
		if r.DelayMillis < 0 {
			return nil, fmt.Errorf("%w: %q has delay %d", ErrNegativeDelay, r.Pattern, r.DelayMillis)
		}

		text := refs.Replace(r.Text)
		entries = append(entries, Entry{
			Pattern:  r.Pattern,
			compiled: p,
			Response: Response{
				Lines: splitLines(text),
				Delay: time.Duration(r.DelayMillis) * time.Millisecond,
			},
		})
	}

	return &Table{entries: entries}, nil
}

// crossReferences builds the replacer mapping {atcgmi}-style tokens to the
// referenced entry's raw response text.
func crossReferences(raw []RawEntry) *strings.Replacer {
	pairs := make([]string, 0, len(raw)*2)
	for _, r := range raw {
		token := "{" + strings.ReplaceAll(strings.ToLower(r.Pattern), "+", "") + "}"
		pairs = append(pairs, token, r.Text)
	}
	return strings.NewReplacer(pairs...)
}

// splitLines breaks response text on embedded newlines, tolerating CRLF.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Entries returns the table's entries in configuration order.
// The returned slice is a copy; the table itself stays immutable.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of configured entries.
func (t *Table) Len() int {
	return len(t.entries)
}
