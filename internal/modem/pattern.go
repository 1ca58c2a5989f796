package modem

import (
	"fmt"
	"strings"
)

// ArgToken is the single placeholder a pattern (and its response text) may
// contain. The matcher compiles it into a capture slot; no runtime format
// evaluation is involved.
const ArgToken = "{arg}"

// pattern is a compiled command pattern: literal text around at most one
// capture slot.
type pattern struct {
	raw    string
	prefix string
	suffix string
	hasArg bool
}

// compilePattern splits a raw pattern into its literal segments.
func compilePattern(raw string) (pattern, error) {
	if raw == "" {
		return pattern{}, ErrEmptyPattern
	}

	switch strings.Count(raw, ArgToken) {
	case 0:
		return pattern{raw: raw}, nil
	case 1:
		i := strings.Index(raw, ArgToken)
		return pattern{
			raw:    raw,
			prefix: raw[:i],
			suffix: raw[i+len(ArgToken):],
			hasArg: true,
		}, nil
	default:
		return pattern{}, fmt.Errorf("%w: %q", ErrMultipleArgs, raw)
	}
}

// match reports whether line matches the pattern, returning the captured
// argument for placeholder patterns. The capture is greedy: everything
// between the literal prefix and suffix, which may be empty.
func (p pattern) match(line string) (arg string, ok bool) {
	if !p.hasArg {
		return "", line == p.raw
	}

	if len(line) < len(p.prefix)+len(p.suffix) {
		return "", false
	}
	if !strings.HasPrefix(line, p.prefix) || !strings.HasSuffix(line, p.suffix) {
		return "", false
	}

	return line[len(p.prefix) : len(line)-len(p.suffix)], true
}
