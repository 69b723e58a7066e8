package mqttgpio

import "errors"

// Sentinels wrapped into every error this package returns; match with
// errors.Is.
var (
	// ErrConnectionFailed reports a failed initial broker connection.
	ErrConnectionFailed = errors.New("mqttgpio: broker connection failed")

	// ErrNotConnected reports an operation attempted without a live
	// broker connection.
	ErrNotConnected = errors.New("mqttgpio: not connected to broker")

	// ErrPublishFailed reports a rejected or timed-out publish.
	ErrPublishFailed = errors.New("mqttgpio: publish failed")

	// ErrSubscribeFailed reports a rejected or timed-out subscribe.
	ErrSubscribeFailed = errors.New("mqttgpio: subscribe failed")

	// ErrUnsubscribeFailed reports a rejected or timed-out unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqttgpio: unsubscribe failed")

	// ErrInvalidQoS reports a quality-of-service level outside 0..2.
	ErrInvalidQoS = errors.New("mqttgpio: qos must be 0, 1 or 2")

	// ErrInvalidTopic reports an empty topic.
	ErrInvalidTopic = errors.New("mqttgpio: empty topic")
)
