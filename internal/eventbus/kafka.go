package eventbus

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"caravel/internal/store"
)

// DefaultTopic is the Kafka topic downstream consumers subscribe to.
const DefaultTopic = "fulfillment.events"

// KafkaWriter is the writer surface used by KafkaPublisher.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher mirrors audit events onto a Kafka topic, keyed by order id
// so per-order ordering is preserved within a partition.
type KafkaPublisher struct {
	writer KafkaWriter
}

// NewKafkaPublisher constructs a publisher with an async writer. Write
// errors are logged by the writer; delivery is fire-and-forget.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			ErrorLogger:  kafka.LoggerFunc(log.Printf),
		},
	}
}

// NewKafkaPublisherWithWriter constructs a publisher over an existing writer
// (for testing/inspection).
func NewKafkaPublisherWithWriter(w KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes the event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, ev store.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("eventbus: marshal kafka payload: %v", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: value,
		Time:  ev.TS,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("eventbus: kafka write: %v", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
