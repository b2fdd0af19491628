package mqtt

import "errors"

// Sentinel errors for the broker session. Check them with errors.Is.
var (
	// ErrConnectionFailed wraps the reason a connection attempt did not complete.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionLost wraps the reason an established session ended.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrNotConnected is returned by Subscribe and HealthCheck without a session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrSubscribeFailed wraps every failure after a SUBSCRIBE was sent.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrSubscribeRejected means the broker answered the SUBSCRIBE with a
	// failure code, typically because an ACL denies the filter.
	ErrSubscribeRejected = errors.New("mqtt: subscription refused by broker")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is returned for an empty topic filter.
	ErrInvalidTopic = errors.New("mqtt: empty topic filter")

	// ErrTimeout is returned when the broker does not answer in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
