// Package checkout starts the checkout saga: it validates the request,
// assigns the order id and publishes CheckoutInitiatedEvent. Everything
// after the publish happens asynchronously through events.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/events"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const StatusProcessing = "PROCESSING"

var (
	ErrValidation    = errors.New("validation failed")
	ErrMissingFields = fmt.Errorf("%w: missing required fields", ErrValidation)
)

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Item struct {
	ProductID Ref `json:"productId"`
	Quantity  int `json:"quantity"`
}

type Request struct {
	UserID      Ref      `json:"userId"`
	Items       []Item   `json:"items"`
	TotalAmount *float64 `json:"totalAmount"`
}

type Result struct {
	OrderID string
	Status  string
}

type Initiator struct {
	publisher Publisher
	log       *logrus.Entry
	metrics   *metrics.SagaMetrics
	newID     func() string
	now       func() time.Time
}

func NewInitiator(publisher Publisher, log *logrus.Entry, m *metrics.SagaMetrics) *Initiator {
	return &Initiator{
		publisher: publisher,
		log:       log,
		metrics:   m,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Initiate publishes CheckoutInitiatedEvent keyed by a fresh order id.
// Nothing is published when validation fails.
func (i *Initiator) Initiate(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		i.metrics.Checkout("rejected")
		return Result{}, err
	}

	items := make([]events.Item, len(req.Items))
	for n, item := range req.Items {
		items[n] = events.Item{ProductID: string(item.ProductID), Quantity: item.Quantity}
	}

	orderID := i.newID()
	ev := events.NewCheckoutInitiated(orderID, string(req.UserID), items, *req.TotalAmount, i.now())

	log := i.log.WithContext(ctx).WithFields(logrus.Fields{
		"event_type": ev.EventType(),
		"order_id":   orderID,
		"user_id":    ev.UserID,
	})

	err := i.publisher.Publish(ctx, ev)
	i.metrics.Published(ev.EventType().String(), err)
	if err != nil {
		i.metrics.Checkout("failed")
		log.WithError(err).Error("failed to initiate checkout")
		return Result{}, fmt.Errorf("publish checkout initiated: %w", err)
	}

	i.metrics.Checkout("accepted")
	log.Info("checkout initiated")
	return Result{OrderID: orderID, Status: StatusProcessing}, nil
}

func Validate(req Request) error {
	if req.UserID == "" || len(req.Items) == 0 || req.TotalAmount == nil {
		return ErrMissingFields
	}
	if *req.TotalAmount <= 0 {
		return fmt.Errorf("%w: totalAmount must be greater than zero", ErrValidation)
	}
	for n, item := range req.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: items[%d].productId is required", ErrValidation, n)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be greater than zero", ErrValidation, n)
		}
	}
	return nil
}
