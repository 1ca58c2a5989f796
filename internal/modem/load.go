package modem

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// rawResponse is the object form of a table value: {"delay": 100, "resp": "..."}.
type rawResponse struct {
	Delay int    `json:"delay"`
	Resp  string `json:"resp"`
}

// LoadTable reads and compiles a JSON response table from disk.
//
// The file is a single JSON object mapping command patterns to either a
// plain response string or an object {"delay": <ms>, "resp": <string>}:
//
//	{
//	  "AT": "OK",
//	  "AT+CGMI": "fake-atc\nOK",
//	  "AT+CSQ": {"delay": 150, "resp": "+CSQ: 18,99\nOK"},
//	  "AT+PING={arg}": "+PONG: {arg}\nOK"
//	}
//
// Key order in the file is preserved; it decides precedence between
// overlapping placeholder patterns.
//
// Parameters:
//   - path: Path to the JSON table file
//
// Returns:
//   - *Table: Compiled table
//   - error: If the file cannot be read, parsed, or compiled
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening response table: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	table, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("response table %s: %w", path, err)
	}
	return table, nil
}

// DecodeTable parses a JSON response table from r and compiles it.
//
// The decoder walks tokens rather than unmarshalling into a map, because
// Go maps would destroy the key order the precedence rules depend on.
func DecodeTable(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected top-level object, got %v", ErrInvalidTable, tok)
	}

	var raw []RawEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key %v", ErrInvalidTable, keyTok)
		}

		entry, err := decodeValue(dec, key)
		if err != nil {
			return nil, err
		}
		raw = append(raw, entry)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	return Compile(raw)
}

// decodeValue reads one table value, which is either a string or a
// {"delay", "resp"} object.
func decodeValue(dec *json.Decoder, key string) (RawEntry, error) {
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return RawEntry{}, fmt.Errorf("%w: value for %q: %w", ErrInvalidTable, key, err)
	}

	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return RawEntry{Pattern: key, Text: text}, nil
	}

	var obj rawResponse
	if err := json.Unmarshal(value, &obj); err != nil {
		return RawEntry{}, fmt.Errorf("%w: value for %q must be a string or {delay, resp} object", ErrInvalidTable, key)
	}

	return RawEntry{Pattern: key, Text: obj.Resp, DelayMillis: obj.Delay}, nil
}
