package mqttgpio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/GeVanCo/pi4j-v2/config"
)

// Timeouts applied to broker operations. Paho tokens otherwise wait
// forever, which would wedge a state change on a dead connection.
const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second

	// disconnectQuiesce is how long Close lets in-flight messages drain.
	disconnectQuiesce = time.Second

	// maxQoS is the highest MQTT quality-of-service level.
	maxQoS = 2
)

// MessageHandler receives each message delivered on a subscribed topic.
// Paho invokes handlers on its own goroutines; a returned error is logged
// and the message stays acknowledged.
type MessageHandler func(topic string, payload []byte) error

// Logger is the slice of the daemon logger this package needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription is one tracked topic registration, kept so the set can be
// replayed after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the shared broker connection behind the MQTT GPIO provider.
//
// One Client serves every line the provider creates: outputs publish level
// commands through it, inputs receive level reports through it, and the
// daemon announces its presence over it. All methods are safe for
// concurrent use, and a zero-value Client answers the read-only methods
// without panicking.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// online mirrors the paho connection state so zero-value and
	// half-closed clients answer IsConnected without touching paho.
	online atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription

	hookMu       sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker named in cfg and returns a ready client.
//
// The connection carries a retained Last Will on <prefix>/system/status so
// remote endpoints learn when the daemon drops off unexpectedly; a
// matching retained "online" message goes out on every (re)connect.
// Reconnection is automatic with exponential backoff, and tracked
// subscriptions are replayed once the broker comes back.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetWill(c.topics.SystemStatus(),
		string(statusPayload(statusOffline, cfg.Broker.ClientID, reasonCrash)), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.brokerUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.brokerDown(err) })

	c.client = pahomqtt.NewClient(opts)
	if err := wait(c.client.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// Paho runs the on-connect handler asynchronously; mark the client
	// usable before it lands so callers can publish straight away.
	c.online.Store(true)
	return c, nil
}

// brokerUp runs on every (re)connect: replay subscriptions, announce
// presence, then hand off to the registered hook.
func (c *Client) brokerUp() {
	c.online.Store(true)

	c.subMu.RLock()
	for topic, sub := range c.subs {
		c.client.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(statusOnline, c.cfg.Broker.ClientID, ""))

	if hook := c.connectHook(); hook != nil {
		hook()
	}
}

// brokerDown records the loss and notifies the registered hook with the
// reason paho reports.
func (c *Client) brokerDown(err error) {
	c.online.Store(false)
	if hook := c.disconnectHook(); hook != nil {
		hook(err)
	}
}

// Close publishes a graceful offline status and disconnects.
//
// The retained status carries a different reason from the Last Will, so
// consumers can tell a clean stop from a crash. Close on a zero-value or
// already-closed client returns nil.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(statusOffline, c.cfg.Broker.ClientID, reasonShutdown))
		token.WaitTimeout(ackTimeout)
	}

	c.client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
	c.online.Store(false)
	return nil
}

// HealthCheck reports whether the broker link is usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last observed connection state.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers a hook run after every successful (re)connect.
func (c *Client) SetOnConnect(hook func()) {
	c.hookMu.Lock()
	c.onConnect = hook
	c.hookMu.Unlock()
}

// SetOnDisconnect registers a hook run when the connection drops.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = hook
	c.hookMu.Unlock()
}

// SetLogger routes handler errors and panics to log. Without one they
// are dropped.
func (c *Client) SetLogger(log Logger) {
	c.hookMu.Lock()
	c.logger = log
	c.hookMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

func (c *Client) connectHook() func() {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.onConnect
}

func (c *Client) disconnectHook() func(error) {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.onDisconnect
}

// dispatch adapts a MessageHandler to paho's callback shape. A panicking
// handler must not kill paho's delivery goroutine, so panics are contained
// and logged here.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.getLogger(); log != nil {
					log.Error("message handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.getLogger(); log != nil {
				log.Warn("message handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// wait blocks on a paho token, converting a timeout or token error into
// the given sentinel.
func wait(token pahomqtt.Token, limit time.Duration, sentinel error) error {
	if !token.WaitTimeout(limit) {
		return fmt.Errorf("%w: no acknowledgment within %v", sentinel, limit)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
