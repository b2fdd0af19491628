package status

// SubscriptionFilter is the broker filter covering every status topic.
const SubscriptionFilter = "$SYS/#"

// SubscriptionQoS is the QoS requested for SubscriptionFilter. Status
// updates are delivered at least once; duplicates are harmless because
// gauges overwrite.
const SubscriptionQoS byte = 1

// topicPrefix is the root of Mosquitto's broker counters.
const topicPrefix = "$SYS/broker/"

// loadWindows are the moving-average windows Mosquitto publishes for every
// load/* counter.
var loadWindows = []string{"1min", "5min", "15min"}

// loadCounters maps a load/* sub-path to the metric name stem.
var loadCounters = []struct {
	path   string
	metric string
}{
	{"load/connections", "connections"},
	{"load/bytes/received", "bytes_received"},
	{"load/bytes/sent", "bytes_sent"},
	{"load/messages/received", "messages_received"},
	{"load/messages/sent", "messages_sent"},
	{"load/publish/dropped", "publish_dropped"},
	{"load/publish/received", "publish_received"},
	{"load/publish/sent", "publish_sent"},
	{"load/sockets", "sockets"},
}

// counters lists the absolute broker counters.
var counters = []struct {
	path   string
	metric string
}{
	{"bytes/received", "bytes_received"},
	{"bytes/sent", "bytes_sent"},
	{"clients/connected", "clients_connected"},
	{"clients/disconnected", "clients_disconnected"},
	{"clients/expired", "clients_expired"},
	{"clients/maximum", "clients_maximum"},
	{"clients/total", "clients_total"},
	{"heap/current", "heap_current"},
	{"heap/maximum", "heap_maximum"},
	{"messages/inflight", "inflight"},
	{"messages/received", "messages_received"},
	{"messages/sent", "messages_sent"},
	{"messages/stored", "messages_stored"},
	{"publish/bytes/received", "publish_bytes_received"},
	{"publish/bytes/sent", "publish_bytes_sent"},
	{"publish/messages/dropped", "publish_dropped"},
	{"publish/messages/received", "publish_received"},
	{"publish/messages/sent", "publish_sent"},
	{"retained messages/count", "retain_messages_count"},
	{"store/messages/bytes", "store_messages_bytes"},
	{"store/messages/count", "store_messages_count"},
	{"subscriptions/count", "subscription_count"},
}

// DefaultTopics returns the Mosquitto status topics the monitor reports.
func DefaultTopics() []Topic {
	topics := make([]Topic, 0, len(counters)+len(loadCounters)*len(loadWindows)+1)

	for _, c := range counters {
		topics = append(topics, Topic{
			Topic:  topicPrefix + c.path,
			Metric: c.metric,
			Kind:   KindInteger,
		})
	}

	for _, c := range loadCounters {
		for _, w := range loadWindows {
			topics = append(topics, Topic{
				Topic:  topicPrefix + c.path + "/" + w,
				Metric: c.metric + "_" + w,
				Kind:   KindFloat,
			})
		}
	}

	topics = append(topics, Topic{
		Topic:  topicPrefix + "uptime",
		Metric: "broker_uptime",
		Kind:   KindDurationSeconds,
	})

	return topics
}
