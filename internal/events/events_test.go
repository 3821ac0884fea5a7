package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dynamic-pricing-service/internal/entity"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

type fakeHistory struct {
	entries []entity.PricingHistoryEntry
	err     error
}

func (h *fakeHistory) Append(_ context.Context, e entity.PricingHistoryEntry) error {
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

func entry() entity.PricingHistoryEntry {
	return entity.PricingHistoryEntry{
		ID:          "h1",
		ProductID:   "p1",
		Kind:        entity.KindRevert,
		PriceBefore: decimal.RequireFromString("105"),
		PriceAfter:  decimal.RequireFromString("100"),
	}
}

func TestPublishingRecorder_StoresThenPublishes(t *testing.T) {
	store := &fakeHistory{}
	w := &fakeWriter{}

	require.NoError(t, NewPublishingRecorder(store, w).Append(context.Background(), entry()))

	require.Len(t, store.entries, 1)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "pricing.revert.p1", string(w.msgs[0].Key))

	var got entity.PricingHistoryEntry
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.True(t, decimal.NewFromInt(100).Equal(got.PriceAfter))
}

func TestPublishingRecorder_PublishFailureIsNotAnError(t *testing.T) {
	store := &fakeHistory{}
	w := &fakeWriter{err: errors.New("broker down")}

	assert.NoError(t, NewPublishingRecorder(store, w).Append(context.Background(), entry()))
	assert.Len(t, store.entries, 1)
}

func TestPublishingRecorder_StoreFailureSkipsPublish(t *testing.T) {
	store := &fakeHistory{err: errors.New("db down")}
	w := &fakeWriter{}

	assert.Error(t, NewPublishingRecorder(store, w).Append(context.Background(), entry()))
	assert.Empty(t, w.msgs)
}
