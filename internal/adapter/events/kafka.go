package events

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes each event to the topic named after its type, keyed by
// the event key.
type KafkaPublisher struct {
	w *kafkago.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	body, err := Encode(eventType, key, data)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafkago.Message{
		Topic: eventType,
		Key:   []byte(key),
		Value: body,
	}); err != nil {
		return fmt.Errorf("kafka: publish failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
