package monitor

import (
	"fmt"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

// NewRegistry builds the status registry from the default Mosquitto topics
// plus any extra topics from the configuration.
func NewRegistry(extra []config.TopicConfig) (*status.Registry, error) {
	entries := status.DefaultTopics()

	for _, tc := range extra {
		kind, err := status.ParseKind(tc.Kind)
		if err != nil {
			return nil, fmt.Errorf("extra topic %q: %w", tc.Topic, err)
		}
		entries = append(entries, status.Topic{
			Topic:  tc.Topic,
			Metric: tc.Metric,
			Kind:   kind,
		})
	}

	return status.NewRegistry(entries...)
}
