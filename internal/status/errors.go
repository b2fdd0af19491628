package status

import "errors"

// Domain errors for status topic handling.
var (
	// ErrDecode is returned when a status payload cannot be decoded
	// according to its topic's Kind.
	ErrDecode = errors.New("status: decode failed")

	// ErrInvalidTopic is returned when a registry entry has an empty
	// topic or metric name, contains a wildcard, or has an unknown Kind.
	ErrInvalidTopic = errors.New("status: invalid topic entry")

	// ErrDuplicateTopic is returned when two registry entries share a topic.
	ErrDuplicateTopic = errors.New("status: duplicate topic entry")
)
