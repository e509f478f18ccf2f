package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned for bodies that are not a JSON object with a
// string type tag, or whose payload does not fit the tagged variant.
var ErrMalformed = errors.New("malformed event")

// Decode parses a raw message into its event variant. Unrecognised tags
// yield Unknown rather than an error.
//
// OrderCreated and OrderCreationFailed are decoded leniently: a correlation
// id of the wrong JSON type decodes as "" so the consumer can still answer
// with a failure event instead of dropping the message.
func Decode(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformed)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	var tag string
	if err := json.Unmarshal(rawType, &tag); err != nil || tag == "" {
		return nil, fmt.Errorf("%w: type must be a non-empty string", ErrMalformed)
	}

	switch Type(tag) {
	case TypeOrderCreated:
		return OrderCreated{
			Type:        TypeOrderCreated,
			OrderID:     stringField(fields, "orderId"),
			UserID:      stringField(fields, "userId"),
			TotalAmount: floatField(fields, "totalAmount"),
			Timestamp:   timeField(fields, "timestamp"),
		}, nil
	case TypeOrderCreationFailed:
		ev := OrderCreationFailed{
			Type:    TypeOrderCreationFailed,
			OrderID: stringField(fields, "orderId"),
			UserID:  stringField(fields, "userId"),
			Reason:  stringField(fields, "reason"),
		}
		if ts := timeField(fields, "timestamp"); !ts.IsZero() {
			ev.Timestamp = &ts
		}
		return ev, nil
	case TypeCheckoutInitiated:
		var ev CheckoutInitiated
		return decodeStrict(data, &ev)
	case TypeCartCleared:
		var ev CartCleared
		return decodeStrict(data, &ev)
	case TypeCartClearanceFailed:
		var ev CartClearanceFailed
		return decodeStrict(data, &ev)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: Type(tag), Raw: raw}, nil
	}
}

func decodeStrict[T Event](data []byte, ev *T) (Event, error) {
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return *ev, nil
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func floatField(fields map[string]json.RawMessage, name string) float64 {
	raw, ok := fields[name]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

func timeField(fields map[string]json.RawMessage, name string) time.Time {
	s := stringField(fields, name)
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
