// Package broker owns the Kafka producer and consumer used by the saga.
// Both are process-wide: main builds them once, injects them, and closes
// them on shutdown. kafka-go dials lazily on the first write or read.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/events"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const EventTypeHeader = "event_type"

type Client struct {
	Brokers []string
}

// NewClient parses a comma separated broker list.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewProducer(topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducer(w)
}

func (c *Client) NewConsumer(topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumer(reader)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
}

func NewProducer(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

// Publish writes ev keyed by ev.Key() and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventType(), err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Key()),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(ev.EventType())},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier{Message: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType(), err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
}

func NewConsumer(r MessageReader) *Consumer {
	return &Consumer{reader: r}
}

// ReadMessage blocks for the next message. With a group id the offset is
// committed as soon as the message is returned.
func (c *Consumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return c.reader.ReadMessage(ctx)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// ExtractContext restores the producer's trace context from message headers.
func ExtractContext(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier{Message: &msg})
}

// HeaderCarrier adapts kafka headers to propagation.TextMapCarrier.
type HeaderCarrier struct {
	Message *kafka.Message
}

func (c HeaderCarrier) Get(key string) string {
	for _, h := range c.Message.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c HeaderCarrier) Set(key, value string) {
	for i, h := range c.Message.Headers {
		if h.Key == key {
			c.Message.Headers[i].Value = []byte(value)
			return
		}
	}
	c.Message.Headers = append(c.Message.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Message.Headers))
	for _, h := range c.Message.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
