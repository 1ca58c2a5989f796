// Package modem implements the AT command table and resolver.
//
// A Table is compiled once from the JSON response table and is immutable
// afterwards. Each entry is either an exact literal command or a pattern
// with a single {arg} placeholder; the placeholder captures greedily up to
// the line terminator and the captured value is substituted back into the
// response text.
//
// Resolution precedence, highest first:
//  1. Built-in commands (AT+DELAY={arg}, AT+CFUN=1,1), name matched
//     case-insensitively
//  2. Exact literal entries
//  3. Placeholder entries, in table insertion order
//
// An unmatched line resolves to the fixed ERROR response. Resolve never
// fails: every input yields either a response or the reboot sentinel.
package modem
