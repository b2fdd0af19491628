package status

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects how a status payload is decoded.
type Kind int

// Payload kinds.
const (
	// KindInteger payloads are base-10 integers, e.g. "42".
	KindInteger Kind = iota + 1

	// KindFloat payloads are decimal numbers, e.g. "12.57".
	KindFloat

	// KindDurationSeconds payloads carry a number of seconds followed by a
	// unit, e.g. "12345 seconds". Only the leading token is significant.
	KindDurationSeconds
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDurationSeconds:
		return "duration_seconds"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a configuration name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return KindInteger, nil
	case "float":
		return KindFloat, nil
	case "duration_seconds", "duration":
		return KindDurationSeconds, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, s)
	}
}

// Topic describes one status topic and the gauge it feeds.
type Topic struct {
	// Topic is the concrete broker topic, e.g. "$SYS/broker/uptime".
	Topic string

	// Metric is the gauge name, without the backend prefix.
	Metric string

	// Kind selects the payload decoder.
	Kind Kind
}

// Message is a status publish received from the broker.
type Message struct {
	Topic   string
	Payload []byte
}

// Sample is a decoded gauge value.
type Sample struct {
	Name  string
	Value float64
}

// Registry is an immutable topic-to-metric table.
//
// Thread Safety: Registry is read-only after NewRegistry returns and is
// safe for concurrent use.
type Registry struct {
	topics map[string]Topic
}

// NewRegistry builds a registry from the given entries.
//
// Every entry must have a non-empty topic and metric, a known Kind and no
// MQTT wildcard characters. Topics must be unique.
func NewRegistry(entries ...Topic) (*Registry, error) {
	r := &Registry{topics: make(map[string]Topic, len(entries))}

	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if _, exists := r.topics[e.Topic]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTopic, e.Topic)
		}
		r.topics[e.Topic] = e
	}

	return r, nil
}

// validateEntry checks a single registry entry.
func validateEntry(e Topic) error {
	if e.Topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if e.Metric == "" {
		return fmt.Errorf("%w: empty metric for %s", ErrInvalidTopic, e.Topic)
	}
	if strings.ContainsAny(e.Topic, "#+") {
		return fmt.Errorf("%w: wildcard in %s", ErrInvalidTopic, e.Topic)
	}
	switch e.Kind {
	case KindInteger, KindFloat, KindDurationSeconds:
	default:
		return fmt.Errorf("%w: unknown kind for %s", ErrInvalidTopic, e.Topic)
	}
	return nil
}

// Lookup returns the entry for an exact topic match.
func (r *Registry) Lookup(topic string) (Topic, bool) {
	t, ok := r.topics[topic]
	return t, ok
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	return len(r.topics)
}

// Topics returns all entries sorted by topic.
func (r *Registry) Topics() []Topic {
	out := make([]Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}
