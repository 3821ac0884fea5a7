// Package events publishes pricing decisions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/service"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// MessageWriter is the part of *kafka.Writer the recorder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PublishingRecorder stores a history entry and then announces it on Kafka.
// The stored row is the source of truth; a failed publish is only logged.
type PublishingRecorder struct {
	store  service.HistoryRecorder
	writer MessageWriter
}

// NewPublishingRecorder creates a PublishingRecorder.
func NewPublishingRecorder(store service.HistoryRecorder, writer MessageWriter) *PublishingRecorder {
	return &PublishingRecorder{store: store, writer: writer}
}

// Append implements service.HistoryRecorder.
func (r *PublishingRecorder) Append(ctx context.Context, entry entity.PricingHistoryEntry) error {
	if err := r.store.Append(ctx, entry); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		logger.Error().Err(err).Msgf("Error marshalling %s event for product %s", entry.Kind, entry.ProductID)
		return nil
	}

	// key -> "pricing.increase.<productID>", "pricing.keep.<productID>" or "pricing.revert.<productID>"
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("pricing.%s.%s", entry.Kind, entry.ProductID)),
		Value: payload,
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for product %s", entry.Kind, entry.ProductID)
	}
	return nil
}
