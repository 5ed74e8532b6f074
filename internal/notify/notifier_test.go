package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleChange() StatusChange {
	return StatusChange{
		OrderID:     "o-1",
		OrderNumber: 101,
		Reference:   "OR26-000101",
		CustomerID:  "c-1",
		Previous:    "placed",
		Current:     "accepted",
		Channels:    []Channel{ChannelEmail},
		OccurredAt:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifierPublishesJSON(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got StatusChange
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Current != "accepted" || got.OrderNumber != 101 {
			return errors.New("unexpected payload")
		}
		return nil
	})
	n := NewKafkaNotifierWithProducer(producer, "order.status.v1", nil)

	require.NoError(t, n.Notify(context.Background(), sampleChange()))
	require.NoError(t, n.Close())
}

func TestKafkaNotifierReturnsSendError(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	n := NewKafkaNotifierWithProducer(producer, "order.status.v1", nil)

	err := n.Notify(context.Background(), sampleChange())

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []StatusChange
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, change StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.err
}

func TestAsyncSwallowsAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	next := &recordingNotifier{err: errors.New("smtp down")}
	a := NewAsync(next, time.Second, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Notify(ctx, sampleChange()))
	cancel()
	require.NoError(t, a.Wait(context.Background()))

	assert.Len(t, next.changes, 1)
	assert.Equal(t, 1, logs.FilterMessage("status notification failed").Len())
}
