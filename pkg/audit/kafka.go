package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the Kafka listener needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaListener produces each event as JSON to a Kafka topic, keyed by
// namespace so that a namespace's history stays ordered.
type KafkaListener struct {
	producer Producer
	topic    string
}

// NewKafkaListener wraps an existing producer.
func NewKafkaListener(p Producer, topic string) *KafkaListener {
	return &KafkaListener{producer: p, topic: topic}
}

// NewKafkaClient creates a franz-go client producing to topic by default.
func NewKafkaClient(brokers []string, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka audit listener: no seed brokers")
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("ns4kafka-audit"),
	}, opts...)
	return kgo.NewClient(all...)
}

func (k *KafkaListener) Name() string { return "kafka" }

// Handle produces e and waits for the broker acknowledgement.
func (k *KafkaListener) Handle(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.Metadata.Namespace),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(e.Kind)},
			{Key: "operation", Value: []byte(e.Operation)},
		},
	}
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
