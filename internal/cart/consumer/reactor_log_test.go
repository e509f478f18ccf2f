package consumer

import (
	"context"
	"testing"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_LogsDroppedAndIgnoredEvents(t *testing.T) {
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	r := NewReactor(nil, &fakePublisher{}, &fakeClearer{}, logrus.NewEntry(base), metrics.NewSagaMetrics(prometheus.NewRegistry(), "cart_test"))

	r.Handle(context.Background(), []byte(`not json`))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "dropping malformed message", hook.LastEntry().Message)

	r.Handle(context.Background(), []byte(`{"type":"OrderCreationFailedEvent","orderId":"o9","reason":"out of stock"}`))
	entry := hook.LastEntry()
	assert.Equal(t, "order creation failed, no action taken", entry.Message)
	assert.Equal(t, "o9", entry.Data["order_id"])
	assert.Equal(t, "out of stock", entry.Data["reason"])

	r.Handle(context.Background(), []byte(`{"type":"SomethingElse"}`))
	assert.Equal(t, "unknown event type received", hook.LastEntry().Message)
	assert.Len(t, hook.AllEntries(), 3)
}
