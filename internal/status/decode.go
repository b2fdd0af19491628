package status

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Decode converts a payload into a Sample for this topic.
//
// Decoding is pure: the same payload always yields the same Sample, so a
// duplicate QoS 1 delivery simply overwrites the gauge with the same value.
// Failures wrap ErrDecode.
func (t Topic) Decode(payload []byte) (Sample, error) {
	var (
		value float64
		err   error
	)

	switch t.Kind {
	case KindInteger:
		value, err = decodeInteger(payload)
	case KindFloat:
		value, err = decodeFloat(payload)
	case KindDurationSeconds:
		value, err = decodeDurationSeconds(payload)
	default:
		err = fmt.Errorf("unknown kind %s", t.Kind)
	}
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %s: %w", ErrDecode, t.Topic, err)
	}

	return Sample{Name: t.Metric, Value: value}, nil
}

// decodeInteger accepts any numeric literal with an integral value, so
// "7", "7.0" and "1e3" all decode.
func decodeInteger(payload []byte) (float64, error) {
	s := string(bytes.TrimSpace(payload))
	f, err := parseFinite(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("integer payload %q has a fractional part", s)
	}
	return f, nil
}

func decodeFloat(payload []byte) (float64, error) {
	s := string(bytes.TrimSpace(payload))
	return parseFinite(s)
}

// decodeDurationSeconds keeps only the leading token of payloads such as
// "12345 seconds".
func decodeDurationSeconds(payload []byte) (float64, error) {
	fields := bytes.Fields(payload)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty duration payload")
	}
	return parseFinite(string(fields[0]))
}

// parseFinite rejects NaN and infinities, which statsd cannot carry.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("numeric payload %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite payload %q", s)
	}
	return f, nil
}
