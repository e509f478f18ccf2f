// Package events defines the messages exchanged on the checkout events topic.
//
// Every message is a flat JSON object carrying a "type" tag, the saga
// correlation ids (orderId, userId) and an ISO-8601 timestamp taken when
// the event is emitted. Marshalling always writes the tag of the concrete
// Go type, so an event can never leave the process untagged.
package events

import (
	"encoding/json"
	"time"
)

// DefaultTopic is the shared saga topic.
const DefaultTopic = "checkout.checkout-events"

type Type string

const (
	TypeCheckoutInitiated   Type = "CheckoutInitiatedEvent"
	TypeOrderCreated        Type = "OrderCreatedEvent"
	TypeOrderCreationFailed Type = "OrderCreationFailedEvent"
	TypeCartCleared         Type = "CartClearedEvent"
	TypeCartClearanceFailed Type = "CartClearanceFailedEvent"
)

func (t Type) String() string {
	return string(t)
}

// Event is implemented by every variant that can travel on the topic.
type Event interface {
	EventType() Type
	// Key is the partition key, so all events of one order land on one partition.
	Key() string
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CheckoutInitiated struct {
	Type        Type      `json:"type"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	Items       []Item    `json:"items"`
	TotalAmount float64   `json:"totalAmount"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e CheckoutInitiated) EventType() Type { return TypeCheckoutInitiated }
func (e CheckoutInitiated) Key() string     { return e.OrderID }

func (e CheckoutInitiated) MarshalJSON() ([]byte, error) {
	type alias CheckoutInitiated
	a := alias(e)
	a.Type = TypeCheckoutInitiated
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}

type OrderCreated struct {
	Type        Type      `json:"type"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	TotalAmount float64   `json:"totalAmount"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e OrderCreated) EventType() Type { return TypeOrderCreated }
func (e OrderCreated) Key() string     { return e.OrderID }

func (e OrderCreated) MarshalJSON() ([]byte, error) {
	type alias OrderCreated
	a := alias(e)
	a.Type = TypeOrderCreated
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}

// OrderCreationFailed is emitted by the order service. Only the type is
// guaranteed, orderId may be missing.
type OrderCreationFailed struct {
	Type      Type       `json:"type"`
	OrderID   string     `json:"orderId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (e OrderCreationFailed) EventType() Type { return TypeOrderCreationFailed }
func (e OrderCreationFailed) Key() string     { return e.OrderID }

func (e OrderCreationFailed) MarshalJSON() ([]byte, error) {
	type alias OrderCreationFailed
	a := alias(e)
	a.Type = TypeOrderCreationFailed
	return json.Marshal(a)
}

type CartCleared struct {
	Type      Type      `json:"type"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e CartCleared) EventType() Type { return TypeCartCleared }
func (e CartCleared) Key() string     { return e.OrderID }

func (e CartCleared) MarshalJSON() ([]byte, error) {
	type alias CartCleared
	a := alias(e)
	a.Type = TypeCartCleared
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}

type CartClearanceFailed struct {
	Type      Type      `json:"type"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (e CartClearanceFailed) EventType() Type { return TypeCartClearanceFailed }

// Key falls back to the user id for failures raised before an order id
// was known.
func (e CartClearanceFailed) Key() string {
	if e.OrderID == "" {
		return e.UserID
	}
	return e.OrderID
}

func (e CartClearanceFailed) MarshalJSON() ([]byte, error) {
	type alias CartClearanceFailed
	a := alias(e)
	a.Type = TypeCartClearanceFailed
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}

// Unknown carries a well-formed message whose type tag no variant matches.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

func (e Unknown) EventType() Type { return e.Type }
func (e Unknown) Key() string     { return "" }

func (e Unknown) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

func NewCheckoutInitiated(orderID, userID string, items []Item, totalAmount float64, now time.Time) CheckoutInitiated {
	return CheckoutInitiated{
		Type:        TypeCheckoutInitiated,
		OrderID:     orderID,
		UserID:      userID,
		Items:       items,
		TotalAmount: totalAmount,
		Timestamp:   now.UTC(),
	}
}

func NewCartCleared(orderID, userID string, now time.Time) CartCleared {
	return CartCleared{
		Type:      TypeCartCleared,
		OrderID:   orderID,
		UserID:    userID,
		Timestamp: now.UTC(),
	}
}

func NewCartClearanceFailed(orderID, userID, reason string, now time.Time) CartClearanceFailed {
	return CartClearanceFailed{
		Type:      TypeCartClearanceFailed,
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Timestamp: now.UTC(),
	}
}
