package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher writes records to one topic, keyed by event unique so all
// issuances for an event land in the same partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit producer: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish buffers the record. Delivery failures are logged, not returned.
func (p *KafkaPublisher) Publish(_ context.Context, rec Record) {
	payload := encode(rec, p.logger)
	if payload == nil {
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(rec.Unique),
		Value: payload,
	}
	p.client.Produce(context.Background(), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit delivery failed", "topic", r.Topic, "error", err)
		}
	})
}

func (p *KafkaPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("audit producer closed with unflushed records", "error", err)
	}
	p.client.Close()
	return nil
}
