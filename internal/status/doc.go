// Package status maps broker status topics to gauge metrics.
//
// Mosquitto publishes its operational counters under the $SYS/broker/
// namespace. Each counter the monitor understands is described by a Topic
// entry: the concrete topic name, the metric name it is reported under,
// and the Kind that selects how its payload is decoded.
//
// A Registry is built once at start-up from DefaultTopics plus any
// operator-supplied entries and is read-only afterwards, so lookups need
// no locking.
//
//	reg, err := status.NewRegistry(status.DefaultTopics()...)
//	if err != nil {
//	    return err
//	}
//	if t, ok := reg.Lookup("$SYS/broker/clients/connected"); ok {
//	    sample, err := t.Decode(payload)
//	    ...
//	}
//
// Lookups are exact string matches. Wildcards are only ever used for the
// broker subscription filter (SubscriptionFilter) and are rejected in
// registry entries.
package status
