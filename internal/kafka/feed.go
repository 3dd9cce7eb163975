package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"modelmon/internal/metrics"
	"modelmon/internal/models"
)

// Feed errors
var (
	ErrFeedClosed      = errors.New("sample feed is closed")
	ErrSerializeFailed = errors.New("failed to serialize sample batch")
)

// Feed publishes each tick's metric samples to a Kafka topic for downstream
// ingestion. It is optional: the scrape endpoint remains the primary
// publication path.
type Feed struct {
	writer *kafka.Writer
	source string
	closed atomic.Bool

	batchesSent   atomic.Uint64
	batchesFailed atomic.Uint64
	bytesWritten  atomic.Uint64
}

// batchMessage is the wire form of one tick's samples
type batchMessage struct {
	Source    string                `json:"source"`
	EmittedAt time.Time             `json:"emitted_at"`
	Samples   []models.MetricSample `json:"samples"`
}

// NewFeed creates a feed writing to topic on the given brokers. The source
// identifies this generator instance in published batches.
func NewFeed(brokers []string, topic, source string) (*Feed, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	return &Feed{
		source: source,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by source for ordering
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			Async:        false,
		},
	}, nil
}

// Publish sends one tick's samples as a single message
func (f *Feed) Publish(ctx context.Context, samples []models.MetricSample) error {
	if f.closed.Load() {
		return ErrFeedClosed
	}
	if len(samples) == 0 {
		return nil
	}

	data, err := json.Marshal(batchMessage{
		Source:    f.source,
		EmittedAt: samples[0].Timestamp,
		Samples:   samples,
	})
	if err != nil {
		f.batchesFailed.Add(1)
		metrics.FeedPublishTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	start := time.Now()
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(f.source),
		Value: data,
		Time:  samples[0].Timestamp,
	})
	metrics.FeedPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		f.batchesFailed.Add(1)
		metrics.FeedPublishTotal.WithLabelValues("failed").Inc()
		return err
	}

	f.batchesSent.Add(1)
	f.bytesWritten.Add(uint64(len(data)))
	metrics.FeedPublishTotal.WithLabelValues("success").Inc()
	return nil
}

// Stats holds feed publishing counters
type Stats struct {
	BatchesSent   uint64
	BatchesFailed uint64
	BytesWritten  uint64
}

// Stats returns current publishing counters
func (f *Feed) Stats() Stats {
	return Stats{
		BatchesSent:   f.batchesSent.Load(),
		BatchesFailed: f.batchesFailed.Load(),
		BytesWritten:  f.bytesWritten.Load(),
	}
}

// Close stops the feed; subsequent publishes return ErrFeedClosed
func (f *Feed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.writer.Close()
}
