package mqttgpio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// ProviderID is the id the provider registers under.
const ProviderID = "mqtt-gpio"

// broker is the client surface the drivers need. *Client satisfies it;
// tests substitute a fake.
type broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
}

// Provider constructs digital instances bridged over MQTT topics.
type Provider struct {
	client broker
	topics Topics
	qos    byte
}

// NewProvider wires a provider to a connected client. Topic prefix and QoS
// come from the MQTT config section.
func NewProvider(client *Client, cfg config.MQTTConfig) *Provider {
	return &Provider{
		client: client,
		topics: NewTopics(cfg.TopicPrefix),
		qos:    byte(cfg.QoS),
	}
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "MQTT GPIO Provider" }

func (p *Provider) Types() []device.Type {
	return []device.Type{device.DigitalOutput, device.DigitalInput}
}

// Create builds an output or input over the line's topic pair, keyed by
// config shape.
func (p *Provider) Create(cfg device.Config) (device.IO, error) {
	switch c := cfg.(type) {
	case digital.OutputConfig:
		return digital.NewOutput(c, &outputDriver{
			client: p.client,
			topic:  p.topics.GPIOSet(c.Address),
			qos:    p.qos,
		}), nil
	case digital.InputConfig:
		return digital.NewInput(c, &inputDriver{
			client: p.client,
			topic:  p.topics.GPIOState(c.Address),
			qos:    p.qos,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %T", provider.ErrUnsupportedConfig, cfg)
	}
}

// levelPayload renders a state as the wire payload.
func levelPayload(s digital.State) []byte {
	if s == digital.High {
		return []byte("1")
	}
	return []byte("0")
}

// parseLevel decodes a wire payload. "1"/"0" are canonical; the uppercase
// level names are accepted for hand-driven endpoints.
func parseLevel(payload []byte) (digital.State, bool) {
	switch v := strings.TrimSpace(string(payload)); v {
	case "1":
		return digital.High, true
	case "0":
		return digital.Low, true
	default:
		s, err := digital.ParseState(v)
		if err != nil || !s.Known() {
			return digital.Unknown, false
		}
		return s, true
	}
}

// outputDriver publishes level commands to one line's set topic.
type outputDriver struct {
	client broker
	topic  string
	qos    byte
}

func (d *outputDriver) Init(context.Context) error { return nil }

func (d *outputDriver) Apply(s digital.State) error {
	if err := d.client.Publish(d.topic, levelPayload(s), d.qos, false); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", s, d.topic, err)
	}
	return nil
}

func (d *outputDriver) Release(context.Context) error { return nil }

// inputDriver subscribes to one line's state topic and caches the last
// reported level for reads.
type inputDriver struct {
	client broker
	topic  string
	qos    byte

	mu   sync.RWMutex
	last digital.State
}

func (d *inputDriver) Init(_ context.Context, watch func(digital.State)) error {
	handler := func(topic string, payload []byte) error {
		s, ok := parseLevel(payload)
		if !ok {
			return fmt.Errorf("unrecognised level payload %q on %s", payload, topic)
		}
		d.mu.Lock()
		d.last = s
		d.mu.Unlock()
		watch(s)
		return nil
	}

	if err := d.client.Subscribe(d.topic, d.qos, handler); err != nil {
		return fmt.Errorf("subscribing to %s: %w", d.topic, err)
	}
	return nil
}

// Read returns the last level reported on the state topic, Unknown before
// the first message. The line itself is on the far side of the broker, so
// there is nothing to poll.
func (d *inputDriver) Read() (digital.State, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, nil
}

// Release drops the state subscription. A dropped broker connection has
// already torn the subscription down, so ErrNotConnected is not a failure.
func (d *inputDriver) Release(context.Context) error {
	err := d.client.Unsubscribe(d.topic)
	if err != nil && !errors.Is(err, ErrNotConnected) {
		return fmt.Errorf("unsubscribing from %s: %w", d.topic, err)
	}
	return nil
}

// Plugin registers the provider during the load phase.
type Plugin struct {
	client *Client
	cfg    config.MQTTConfig
}

// NewPlugin builds a plugin over a connected client.
func NewPlugin(client *Client, cfg config.MQTTConfig) *Plugin {
	return &Plugin{client: client, cfg: cfg}
}

func (p *Plugin) Name() string { return "mqtt-gpio" }

func (p *Plugin) Initialize(svc *provider.Service) error {
	return svc.RegisterProviders(NewProvider(p.client, p.cfg))
}
