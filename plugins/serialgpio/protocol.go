package serialgpio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GeVanCo/pi4j-v2/digital"
)

// Protocol verbs.
const (
	verbMode  = "MODE"
	verbSet   = "SET"
	verbGet   = "GET"
	respOK    = "OK"
	respErr   = "ERR"
	respState = "STATE"
	respEvent = "EVENT"
)

// Pin directions on the wire.
const (
	directionIn  = "IN"
	directionOut = "OUT"
)

// pullToken renders a bias on the wire.
func pullToken(p digital.Pull) string {
	switch p {
	case digital.PullUp:
		return "PULLUP"
	case digital.PullDown:
		return "PULLDOWN"
	default:
		return "NONE"
	}
}

// levelToken renders a state as the wire digit. Only High maps to "1";
// anything else drives low.
func levelToken(s digital.State) string {
	if s == digital.High {
		return "1"
	}
	return "0"
}

// parseLevelToken decodes a wire digit.
func parseLevelToken(tok string) (digital.State, bool) {
	switch tok {
	case "1":
		return digital.High, true
	case "0":
		return digital.Low, true
	default:
		return digital.Unknown, false
	}
}

func formatModeOut(addr int) string {
	return fmt.Sprintf("%s %d %s", verbMode, addr, directionOut)
}

func formatModeIn(addr int, pull digital.Pull) string {
	return fmt.Sprintf("%s %d %s %s", verbMode, addr, directionIn, pullToken(pull))
}

func formatSet(addr int, s digital.State) string {
	return fmt.Sprintf("%s %d %s", verbSet, addr, levelToken(s))
}

func formatGet(addr int) string {
	return fmt.Sprintf("%s %d", verbGet, addr)
}

// parseEvent decodes an unsolicited "EVENT <addr> <0|1>" line. Returns
// false for anything else, including malformed EVENT lines.
func parseEvent(line string) (addr int, s digital.State, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != respEvent {
		return 0, digital.Unknown, false
	}
	addr, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, digital.Unknown, false
	}
	s, ok = parseLevelToken(fields[2])
	if !ok {
		return 0, digital.Unknown, false
	}
	return addr, s, true
}

// parseState decodes a "STATE <addr> <0|1>" response line.
func parseState(line string) (addr int, s digital.State, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != respState {
		return 0, digital.Unknown, fmt.Errorf("%w: unexpected response %q", ErrCommandFailed, line)
	}
	addr, aerr := strconv.Atoi(fields[1])
	if aerr != nil {
		return 0, digital.Unknown, fmt.Errorf("%w: bad address in %q", ErrCommandFailed, line)
	}
	s, ok := parseLevelToken(fields[2])
	if !ok {
		return 0, digital.Unknown, fmt.Errorf("%w: bad level in %q", ErrCommandFailed, line)
	}
	return addr, s, nil
}

// checkAck interprets an OK/ERR response line.
func checkAck(line string) error {
	switch {
	case line == respOK:
		return nil
	case strings.HasPrefix(line, respErr+" "):
		return fmt.Errorf("%w: %s", ErrCommandRejected, strings.TrimPrefix(line, respErr+" "))
	case line == respErr:
		return ErrCommandRejected
	default:
		return fmt.Errorf("%w: unexpected response %q", ErrCommandFailed, line)
	}
}
