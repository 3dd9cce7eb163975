package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"modelmon/internal/models"
)

func TestNewFeedValidation(t *testing.T) {
	if _, err := NewFeed(nil, "model-metrics", "gen-1"); err == nil {
		t.Error("expected an error without brokers")
	}
	if _, err := NewFeed([]string{"localhost:9092"}, "", "gen-1"); err == nil {
		t.Error("expected an error without a topic")
	}
}

func TestPublishAfterClose(t *testing.T) {
	f, err := NewFeed([]string{"localhost:9092"}, "model-metrics", "gen-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close is a no-op
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	samples := []models.MetricSample{{Name: models.MetricAccuracy, Value: 0.85, Timestamp: time.Now()}}
	if err := f.Publish(context.Background(), samples); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("Publish after close error = %v, want ErrFeedClosed", err)
	}
}

func TestPublishEmptyBatchIsNoop(t *testing.T) {
	f, err := NewFeed([]string{"localhost:9092"}, "model-metrics", "gen-1")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// No broker round-trip happens for an empty batch
	if err := f.Publish(context.Background(), nil); err != nil {
		t.Errorf("Publish(nil) = %v, want nil", err)
	}
	if stats := f.Stats(); stats.BatchesSent != 0 || stats.BatchesFailed != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}
