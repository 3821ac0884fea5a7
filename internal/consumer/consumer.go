package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"dynamic-pricing-service/internal/entity"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Runner is the pricing entry point a trigger invokes.
type Runner interface {
	RunPricingAlgorithm(ctx context.Context, storeID, storeDomain string, creds entity.Credentials) entity.RunResult
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunTrigger is the optional payload of a trigger message.
type RunTrigger struct {
	StoreDomain string `json:"store_domain"`
}

// Consumer starts pricing runs requested over Kafka.
type Consumer struct {
	reader      MessageReader
	runner      Runner
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer creates a Consumer.
func NewConsumer(reader MessageReader, runner Runner) *Consumer {
	return &Consumer{reader: reader, runner: runner, maxAttempts: 3, backoff: 5 * time.Second}
}

// Start reads trigger messages until ctx is done.
func (c *Consumer) Start(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Msgf("Error reading message: %v", err)
			continue
		}

		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			if !c.processMessage(ctx, msg) || attempt == c.maxAttempts {
				break
			}
			logger.Warn().Msgf("Run for %s could not start, retrying (%d/%d)", string(msg.Key), attempt, c.maxAttempts)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Msgf("Error committing message %s: %v", string(msg.Key), err)
		}
	}
}

// processMessage runs the store named by the message key and reports whether it should be retried.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) (retry bool) {
	// key -> "pricing.run.storeID"
	key := string(msg.Key)
	listKey := strings.SplitN(key, ".", 3)
	if len(listKey) != 3 || listKey[0] != "pricing" || listKey[1] != "run" || listKey[2] == "" {
		logger.Error().Msgf("Unknown trigger key: %s", key)
		return false
	}
	storeID := listKey[2]

	var trigger RunTrigger
	if len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, &trigger); err != nil {
			logger.Error().Msgf("Error unmarshalling trigger for store %s: %v", storeID, err)
			return false
		}
	}

	res := c.runner.RunPricingAlgorithm(ctx, storeID, trigger.StoreDomain, entity.Credentials{})
	if !res.Success {
		logger.Error().Msgf("Triggered run for store %s failed: %s", storeID, strings.Join(res.Errors, "; "))
		return true
	}
	logger.Info().Msgf("Triggered run for store %s finished: processed=%d errors=%d", storeID, res.Stats.Processed, res.Stats.Errors)
	return false
}
