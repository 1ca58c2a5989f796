// atprobe - interactive AT command probe
//
// atprobe opens a serial device (typically the modemsim symlink), sends
// each AT command given on the command line or read from stdin, and
// prints the timed response. It is a convenience client for exercising
// the simulator without wiring up real modem software:
//
//	atprobe -device /tmp/ttyFAKE AT AT+CGMI "AT+CFUN=1,1"
//	echo AT+CSQ | atprobe -device /tmp/ttyFAKE
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

// settleWindow is how long a response is considered still in flight
// after the last byte arrived. Delayed table entries can stretch the
// wait well beyond this; it only bounds the quiet period at the end.
const settleWindow = 300 * time.Millisecond

// responseTimeout is the overall cap on waiting for a single response.
const responseTimeout = 30 * time.Second

func main() {
	device := flag.String("device", "/tmp/ttyFAKE", "serial device or symlink to open")
	baud := flag.Int("baud", 115200, "baud rate (cosmetic on a virtual device)")
	flag.Parse()

	if err := probe(*device, *baud, commandSource(flag.Args())); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandSource returns the commands to send: the positional arguments
// when given, otherwise lines read from stdin.
func commandSource(args []string) []string {
	if len(args) > 0 {
		return args
	}

	var commands []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			commands = append(commands, line)
		}
	}
	return commands
}

func probe(device string, baud int, commands []string) error {
	if len(commands) == 0 {
		return fmt.Errorf("no commands to send")
	}

	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", device, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(settleWindow); err != nil {
		return fmt.Errorf("setting read timeout: %w", err)
	}

	// Drain the boot banner if the simulator just came up.
	drain(port)

	for _, cmd := range commands {
		if err := send(port, cmd); err != nil {
			return err
		}
	}
	return nil
}

// send writes one command and prints the response with its round-trip time.
func send(port serial.Port, cmd string) error {
	fmt.Printf(">> %s\n", cmd)

	start := time.Now()
	if _, err := port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}

	response := collect(port)
	elapsed := time.Since(start)

	if response == "" {
		fmt.Printf("<< (no response in %s)\n", responseTimeout)
		return nil
	}

	for _, line := range strings.Split(response, "\r\n") {
		if line != "" {
			fmt.Printf("<< %s\n", line)
		}
	}
	fmt.Printf("   (%s)\n", elapsed.Round(time.Millisecond))
	return nil
}

// collect reads until the response goes quiet or the overall timeout hits.
// Reads are bounded by the port's read timeout, so a zero-byte read marks
// a quiet window.
func collect(port serial.Port) string {
	var sb strings.Builder
	deadline := time.Now().Add(responseTimeout)
	buf := make([]byte, 512)

	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
			continue
		}
		if err != nil {
			break
		}
		// Zero-byte read: the read timeout elapsed with nothing new.
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

// drain discards whatever is already buffered on the port.
func drain(port serial.Port) {
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}
