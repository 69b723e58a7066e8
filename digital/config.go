package digital

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GeVanCo/pi4j-v2/device"
)

// Pull selects the bias resistor applied to an input line.
type Pull int8

const (
	// PullOff leaves the line floating.
	PullOff Pull = iota

	// PullDown biases the line towards Low.
	PullDown

	// PullUp biases the line towards High.
	PullUp
)

func (p Pull) String() string {
	switch p {
	case PullDown:
		return "DOWN"
	case PullUp:
		return "UP"
	default:
		return "OFF"
	}
}

// ParsePull converts a textual bias to a Pull. Accepted values, case
// insensitive: off/none/empty, down/pull-down/pulldown, up/pull-up/pullup.
func ParsePull(v string) (Pull, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "off", "none", "":
		return PullOff, nil
	case "down", "pull-down", "pulldown":
		return PullDown, nil
	case "up", "pull-up", "pullup":
		return PullUp, nil
	default:
		return PullOff, fmt.Errorf("digital: unrecognised pull %q", v)
	}
}

// MarshalJSON encodes the pull as its string name.
func (p Pull) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts any form ParsePull accepts.
func (p *Pull) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParsePull(v)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes the pull as its string name.
func (p Pull) MarshalYAML() (any, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts any form ParsePull accepts.
func (p *Pull) UnmarshalYAML(value *yaml.Node) error {
	var v string
	if err := value.Decode(&v); err != nil {
		return err
	}
	parsed, err := ParsePull(v)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// OutputConfig carries the immutable settings for one digital output.
//
// A zero-valued state field means "not configured": no initial level is
// applied when InitialState is Unknown, no shutdown level when
// ShutdownState is Unknown, and OnState falls back to High.
type OutputConfig struct {
	// ID uniquely identifies the instance within the registry. Empty
	// means a unique id is generated at construction.
	ID string `json:"id"`

	// Name is the human-readable label, defaulting to the id.
	Name string `json:"name,omitempty"`

	// Address is the provider-interpreted line address (for native GPIO
	// providers, the BCM pin number).
	Address int `json:"address"`

	// InitialState is applied during Initialize when not Unknown.
	InitialState State `json:"initial_state,omitempty"`

	// ShutdownState is applied during Shutdown when not Unknown.
	ShutdownState State `json:"shutdown_state,omitempty"`

	// OnState is the level On drives; Off drives its inverse. Unknown
	// means High.
	OnState State `json:"on_state,omitempty"`
}

func (c OutputConfig) InstanceID() string { return c.ID }

func (c OutputConfig) InstanceName() string {
	if c.Name == "" {
		return c.ID
	}
	return c.Name
}

func (c OutputConfig) IOType() device.Type { return device.DigitalOutput }

// InputConfig carries the immutable settings for one digital input.
type InputConfig struct {
	// ID uniquely identifies the instance within the registry. Empty
	// means a unique id is generated at construction.
	ID string `json:"id"`

	// Name is the human-readable label, defaulting to the id.
	Name string `json:"name,omitempty"`

	// Address is the provider-interpreted line address.
	Address int `json:"address"`

	// Pull selects the bias resistor.
	Pull Pull `json:"pull,omitempty"`

	// Debounce suppresses edges arriving within the window after a
	// reported edge. Zero disables debouncing. Drivers without hardware
	// debouncing apply it in software.
	Debounce time.Duration `json:"debounce,omitempty"`
}

func (c InputConfig) InstanceID() string { return c.ID }

func (c InputConfig) InstanceName() string {
	if c.Name == "" {
		return c.ID
	}
	return c.Name
}

func (c InputConfig) IOType() device.Type { return device.DigitalInput }
