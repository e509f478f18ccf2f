package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/events"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/NitheshChakaravarthySeelan/community-platform/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fakeClearer struct {
	mu    sync.Mutex
	calls []string
	err   error
	panic bool
}

func (c *fakeClearer) ClearCart(_ context.Context, userID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, userID)
	if c.panic {
		panic("boom")
	}
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
}

func (c *fakeClearer) clearedUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// fakeReader hands out queued messages, then blocks until ctx ends or
// returns io.EOF when closeWhenDrained is set.
type fakeReader struct {
	mu               sync.Mutex
	msgs             []kafka.Message
	errs             []error
	closeWhenDrained bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	drained := r.closeWhenDrained
	r.mu.Unlock()

	if drained {
		return kafka.Message{}, io.EOF
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	reactor   *Reactor
	publisher *fakePublisher
	clearer   *fakeClearer
	metrics   *metrics.SagaMetrics
}

func newHarness(reader MessageReader) *harness {
	h := &harness{
		publisher: &fakePublisher{},
		clearer:   &fakeClearer{},
		metrics:   metrics.NewSagaMetrics(prometheus.NewRegistry(), "cart_test"),
	}
	h.reactor = NewReactor(reader, h.publisher, h.clearer, logger.NewWithOutput("test", "error", io.Discard), h.metrics)
	h.reactor.now = func() time.Time { return fixedNow }
	return h
}

func TestHandle_OrderCreatedClearsCart(t *testing.T) {
	h := newHarness(nil)

	h.reactor.Handle(context.Background(), []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1","totalAmount":10,"timestamp":"2025-03-01T08:59:00Z"}`))

	assert.Equal(t, []string{"u1"}, h.clearer.clearedUsers())
	require.Len(t, h.publisher.published(), 1)
	assert.Equal(t, events.NewCartCleared("o1", "u1", fixedNow), h.publisher.published()[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsConsumed.WithLabelValues("OrderCreatedEvent", "handled")))
}

func TestHandle_ClearFailurePublishesReason(t *testing.T) {
	h := newHarness(nil)
	h.clearer.err = errors.New("connection refused")

	h.reactor.Handle(context.Background(), []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1"}`))

	require.Len(t, h.publisher.published(), 1)
	assert.Equal(t, events.NewCartClearanceFailed("o1", "u1", "connection refused", fixedNow), h.publisher.published()[0])
}

func TestHandle_InvalidIdsSkipClear(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantOrder  string
		wantUser   string
		wantReason string
	}{
		{
			name:       "missing orderId",
			payload:    `{"type":"OrderCreatedEvent","userId":"u1"}`,
			wantUser:   "u1",
			wantReason: "invalid event: invalid or missing orderId in OrderCreatedEvent",
		},
		{
			name:       "numeric orderId",
			payload:    `{"type":"OrderCreatedEvent","orderId":42,"userId":"u1"}`,
			wantUser:   "u1",
			wantReason: "invalid event: invalid or missing orderId in OrderCreatedEvent",
		},
		{
			name:       "missing userId",
			payload:    `{"type":"OrderCreatedEvent","orderId":"o1"}`,
			wantOrder:  "o1",
			wantReason: "invalid event: invalid or missing userId in OrderCreatedEvent",
		},
		{
			name:       "empty userId",
			payload:    `{"type":"OrderCreatedEvent","orderId":"o1","userId":""}`,
			wantOrder:  "o1",
			wantReason: "invalid event: invalid or missing userId in OrderCreatedEvent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)

			h.reactor.Handle(context.Background(), []byte(tt.payload))

			assert.Empty(t, h.clearer.clearedUsers())
			require.Len(t, h.publisher.published(), 1)
			assert.Equal(t,
				events.NewCartClearanceFailed(tt.wantOrder, tt.wantUser, tt.wantReason, fixedNow),
				h.publisher.published()[0])
		})
	}
}

func TestHandle_NoReaction(t *testing.T) {
	payloads := map[string]string{
		"order creation failed": `{"type":"OrderCreationFailedEvent","orderId":"o1","reason":"out of stock"}`,
		"own cleared event":     `{"type":"CartClearedEvent","orderId":"o1","userId":"u1","timestamp":"2025-03-01T09:00:00Z"}`,
		"checkout initiated":    `{"type":"CheckoutInitiatedEvent","orderId":"o1","userId":"u1","items":[],"totalAmount":1,"timestamp":"2025-03-01T09:00:00Z"}`,
		"unknown type":          `{"type":"SomethingElse","orderId":"o1"}`,
		"not json":              `not json`,
		"array":                 `[1,2]`,
		"missing type":          `{"orderId":"o1","userId":"u1"}`,
		"empty":                 ``,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			h := newHarness(nil)

			assert.NotPanics(t, func() {
				h.reactor.Handle(context.Background(), []byte(payload))
			})

			assert.Empty(t, h.clearer.clearedUsers())
			assert.Empty(t, h.publisher.published())
		})
	}
}

func TestHandle_PublishFailureIsCounted(t *testing.T) {
	h := newHarness(nil)
	h.publisher.err = errors.New("broker down")

	assert.NotPanics(t, func() {
		h.reactor.Handle(context.Background(), []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1"}`))
	})

	assert.Equal(t, []string{"u1"}, h.clearer.clearedUsers())
	assert.Len(t, h.publisher.published(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsPublished.WithLabelValues("CartClearedEvent", "error")))
}

func TestHandle_RecoversFromPanic(t *testing.T) {
	h := newHarness(nil)
	h.clearer.panic = true

	assert.NotPanics(t, func() {
		h.reactor.Handle(context.Background(), []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1"}`))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsConsumed.WithLabelValues("unknown", "panic")))
}

func TestRun_ProcessesInOrderAndSurvivesBadMessages(t *testing.T) {
	reader := &fakeReader{
		msgs: []kafka.Message{
			{Value: []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1"}`)},
			{Value: []byte(`garbage`)},
			{Value: []byte(`{"type":"OrderCreatedEvent","orderId":"o2","userId":"u2"}`)},
		},
		closeWhenDrained: true,
	}
	h := newHarness(reader)

	h.reactor.Run(context.Background())

	assert.Equal(t, []string{"u1", "u2"}, h.clearer.clearedUsers())
	published := h.publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, "o1", published[0].Key())
	assert.Equal(t, "o2", published[1].Key())
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(&fakeReader{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.reactor.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not stop after cancel")
	}
}

func TestRun_ContinuesAfterReadError(t *testing.T) {
	reader := &fakeReader{
		errs:             []error{errors.New("coordinator not available")},
		msgs:             []kafka.Message{{Value: []byte(`{"type":"OrderCreatedEvent","orderId":"o1","userId":"u1"}`)}},
		closeWhenDrained: true,
	}
	h := newHarness(reader)

	h.reactor.Run(context.Background())

	assert.Equal(t, []string{"u1"}, h.clearer.clearedUsers())
}
