package digital

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// State is the logical level of a digital endpoint.
//
// The zero value is Unknown, which doubles as "not configured" in
// OutputConfig: an initial or shutdown state of Unknown means no level is
// applied during that lifecycle phase, and an on-state of Unknown falls
// back to High.
type State int8

const (
	// Unknown is the pre-initialization level. It is never written to a
	// device.
	Unknown State = iota

	// Low is logic low.
	Low

	// High is logic high.
	High
)

// String returns the conventional uppercase level name.
func (s State) String() string {
	switch s {
	case Low:
		return "LOW"
	case High:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Value returns the numeric level: 1 for High, 0 for Low, -1 for Unknown.
func (s State) Value() int {
	switch s {
	case Low:
		return 0
	case High:
		return 1
	default:
		return -1
	}
}

// Inverse returns the opposite level. Unknown has no inverse and maps to
// itself.
func (s State) Inverse() State {
	switch s {
	case Low:
		return High
	case High:
		return Low
	default:
		return Unknown
	}
}

// Known reports whether s is an operative level (High or Low).
func (s State) Known() bool { return s == Low || s == High }

// ParseState converts a textual level to a State. Accepted values, case
// insensitive: high, 1, true, on; low, 0, false, off; unknown or empty.
func ParseState(v string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high", "1", "true", "on":
		return High, nil
	case "low", "0", "false", "off":
		return Low, nil
	case "unknown", "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("digital: unrecognised state %q", v)
	}
}

// MarshalJSON encodes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any form ParseState accepts.
func (s *State) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseState(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the state as its string name.
func (s State) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML accepts any form ParseState accepts, so states can appear
// in config files as plain strings.
func (s *State) UnmarshalYAML(value *yaml.Node) error {
	var v string
	if err := value.Decode(&v); err != nil {
		return err
	}
	parsed, err := ParseState(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
