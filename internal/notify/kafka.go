package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic receives purchase-confirmed messages.
const DefaultKafkaTopic = "tigertix.purchases"

// KafkaPublisher writes one message per purchase, keyed by event id so that
// all purchases of one event land on the same partition in commit order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a synchronous writer for brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// The publish runs on the request path after commit; don't wait
			// for a batch to fill.
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg PurchaseConfirmed) error {
	body, err := msg.encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.Purchase.EventID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(msg.Type)},
			{Key: "message_id", Value: []byte(msg.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
