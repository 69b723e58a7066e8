package mqttgpio

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is used when the config names no prefix.
const DefaultTopicPrefix = "pi4j"

// Topics builds the GPIO topic hierarchy under a configurable prefix.
//
// Every line is a pair of topics:
//
//	topics := mqttgpio.NewTopics("pi4j")
//	topics.GPIOSet(17)   // "pi4j/gpio/17/set"
//	topics.GPIOState(17) // "pi4j/gpio/17/state"
//
// Using these helpers keeps topic naming consistent between the provider
// and the remote endpoint firmware.
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder for prefix, defaulting when empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// GPIOSet returns the command topic for a line. Outputs publish "1" or "0"
// here; the remote endpoint applies the level.
func (t Topics) GPIOSet(address int) string {
	return fmt.Sprintf("%s/gpio/%d/set", t.prefix, address)
}

// GPIOState returns the state topic for a line. The remote endpoint
// publishes the observed level here; inputs subscribe.
func (t Topics) GPIOState(address int) string {
	return fmt.Sprintf("%s/gpio/%d/state", t.prefix, address)
}

// AllGPIOStates returns a wildcard matching every line's state topic.
func (t Topics) AllGPIOStates() string {
	return t.prefix + "/gpio/+/state"
}

// SystemStatus returns the daemon's online/offline status topic, also used
// as the LWT target.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// ParseGPIOState extracts the line address from a state topic. It reports
// false for topics outside the scheme.
func (t Topics) ParseGPIOState(topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/gpio/")
	if !ok {
		return 0, false
	}
	addrPart, ok := strings.CutSuffix(rest, "/state")
	if !ok {
		return 0, false
	}
	address, err := strconv.Atoi(addrPart)
	if err != nil {
		return 0, false
	}
	return address, true
}
