package mqttgpio

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB, in line with common broker
// limits. Level commands are a single byte; the cap guards PublishString
// misuse rather than normal traffic.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic at the given QoS level. retained asks the
// broker to hand the message to future subscribers as well; level commands
// are not retained, presence messages are.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d byte limit",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return wait(c.client.Publish(topic, qos, retained, payload), ackTimeout, ErrPublishFailed)
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// Subscribe registers handler for every message arriving on topic. The
// topic may carry MQTT wildcards: + matches one level, # the rest.
//
// The registration is tracked and replayed after a reconnect, so a
// flapping broker does not silently deafen input lines.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track before the broker call so a reconnect racing this subscribe
	// still replays it.
	c.subMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := wait(c.client.Subscribe(topic, qos, c.dispatch(handler)), ackTimeout, ErrSubscribeFailed); err != nil {
		c.subMu.Lock()
		delete(c.subs, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe stops delivery for topic and drops it from the replay set.
// Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()

	return wait(c.client.Unsubscribe(topic), ackTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns how many topics are currently tracked.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// HasSubscription reports whether topic is tracked. Exact string match,
// no wildcard expansion.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subs[topic]
	return ok
}

// checkTopicQoS rejects the argument mistakes every broker verb shares.
func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
