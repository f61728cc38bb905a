package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher delivers events to a Kafka topic, one record per event,
// keyed by resource so per-resource ordering survives partitioning.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(30*time.Second),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Publish sends one event and waits for broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   event.Key(),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// Ping reports whether the brokers are reachable.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
