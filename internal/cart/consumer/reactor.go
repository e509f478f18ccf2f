// Package consumer runs the cart side of the checkout saga: it reads the
// shared events topic, clears the buyer's cart when an order is created
// and reports the outcome back on the same topic.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/broker"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/events"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrInvalidEvent = errors.New("invalid event")

const readRetryDelay = time.Second

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type Reactor struct {
	reader    MessageReader
	publisher Publisher
	carts     CartClearer
	log       *logrus.Entry
	metrics   *metrics.SagaMetrics
	now       func() time.Time
}

func NewReactor(reader MessageReader, publisher Publisher, carts CartClearer, log *logrus.Entry, m *metrics.SagaMetrics) *Reactor {
	return &Reactor{
		reader:    reader,
		publisher: publisher,
		carts:     carts,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Run reads and handles messages one at a time until ctx is cancelled or
// the reader is closed. A message that has been read is always handled to
// completion, even if ctx is cancelled meanwhile.
func (r *Reactor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			r.log.WithError(err).Error("error reading message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		handleCtx := broker.ExtractContext(context.WithoutCancel(ctx), msg)
		r.Handle(handleCtx, msg.Value)
	}
}

// Handle processes a single message body. It never panics and never
// retries; every outcome is reported through logs, metrics and events.
func (r *Reactor) Handle(ctx context.Context, payload []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithContext(ctx).WithField("panic", p).Error("recovered from panic while handling event")
			r.metrics.Consumed("unknown", "panic")
		}
	}()

	ev, err := events.Decode(payload)
	if err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("dropping malformed message")
		r.metrics.Consumed("malformed", "dropped")
		return
	}

	log := r.log.WithContext(ctx).WithField("event_type", ev.EventType())

	switch e := ev.(type) {
	case events.OrderCreated:
		r.handleOrderCreated(ctx, e)
	case events.OrderCreationFailed:
		log.WithFields(logrus.Fields{
			"order_id": e.OrderID,
			"reason":   e.Reason,
		}).Warn("order creation failed, no action taken")
		r.metrics.Consumed(ev.EventType().String(), "ignored")
	case events.Unknown:
		log.Warn("unknown event type received")
		r.metrics.Consumed("unknown", "ignored")
	default:
		log.WithField("order_id", ev.Key()).Debug("event not handled by cart service")
		r.metrics.Consumed(ev.EventType().String(), "ignored")
	}
}

func (r *Reactor) handleOrderCreated(ctx context.Context, e events.OrderCreated) {
	log := r.log.WithContext(ctx).WithFields(logrus.Fields{
		"event_type": e.EventType(),
		"order_id":   e.OrderID,
		"user_id":    e.UserID,
	})
	log.Info("received order created event")

	if err := validateOrderCreated(e); err != nil {
		log.WithError(err).Warn("rejecting order created event")
		r.metrics.Consumed(e.EventType().String(), "invalid")
		r.publish(ctx, log, events.NewCartClearanceFailed(e.OrderID, e.UserID, err.Error(), r.now()))
		return
	}

	if _, err := r.carts.ClearCart(ctx, e.UserID); err != nil {
		log.WithError(err).Error("failed to clear cart")
		r.metrics.Consumed(e.EventType().String(), "failed")
		r.publish(ctx, log, events.NewCartClearanceFailed(e.OrderID, e.UserID, err.Error(), r.now()))
		return
	}

	r.metrics.Consumed(e.EventType().String(), "handled")
	r.publish(ctx, log, events.NewCartCleared(e.OrderID, e.UserID, r.now()))
}

func validateOrderCreated(e events.OrderCreated) error {
	if e.OrderID == "" {
		return fmt.Errorf("%w: invalid or missing orderId in OrderCreatedEvent", ErrInvalidEvent)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: invalid or missing userId in OrderCreatedEvent", ErrInvalidEvent)
	}
	return nil
}

func (r *Reactor) publish(ctx context.Context, log *logrus.Entry, ev events.Event) {
	err := r.publisher.Publish(ctx, ev)
	r.metrics.Published(ev.EventType().String(), err)
	if err != nil {
		log.WithError(err).WithField("published_type", ev.EventType()).Error("failed to publish follow-up event")
		return
	}
	log.WithField("published_type", ev.EventType()).Info("follow-up event published")
}
