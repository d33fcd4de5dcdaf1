package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *messaging.OrderEvent {
	return &messaging.OrderEvent{
		EventSeq:     7,
		OrderID:      "s1",
		Symbol:       "ABC-USD",
		Side:         core.Sell,
		State:        core.StateOpen,
		Price:        105,
		PriceDecimal: "1.05",
		Qty:          10,
		QtyOpen:      6,
		QtyFilled:    4,
		Fills:        []messaging.FillEvent{{Price: 105, PriceDecimal: "1.05", Qty: 4, Counterparty: "b1"}},
		Seq:          1,
	}
}

func withMockProducer(t *testing.T, prod *mockProducer) {
	t.Helper()

	old := newSyncProducer
	t.Cleanup(func() { newSyncProducer = old })
	newSyncProducer = func(addrs []string, config *sarama.Config) (sarama.SyncProducer, error) {
		if !config.Producer.Return.Successes {
			return nil, errors.New("sync producer needs Return.Successes")
		}
		return prod, nil
	}
}

func TestSenderSend(t *testing.T) {
	prod := &mockProducer{}
	withMockProducer(t, prod)

	sender, err := NewSender([]string{"localhost:9092"}, "orders")
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), testEvent()))
	require.Len(t, prod.sentMessages, 1)

	msg := prod.sentMessages[0]
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, sarama.ByteEncoder("ABC-USD"), msg.Key)

	decoded, err := messaging.UnmarshalOrderEvent(msg.Value.(sarama.ByteEncoder))
	require.NoError(t, err)
	assert.Equal(t, testEvent(), decoded)

	require.NoError(t, sender.Close())
	assert.True(t, prod.closed)
}

func TestSenderErrors(t *testing.T) {
	prod := &mockProducer{err: errors.New("not enough replicas")}
	withMockProducer(t, prod)

	_, err := NewSender([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	sender, err := NewSender([]string{"localhost:9092"}, "orders")
	require.NoError(t, err)
	assert.ErrorIs(t, sender.Send(context.Background(), testEvent()), prod.err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Send(ctx, testEvent()), context.Canceled)
}

func TestConsumerConsume(t *testing.T) {
	mock := &mockConsumer{
		messages: make(chan *sarama.ConsumerMessage, 1),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	consumer := &Consumer{
		consumer: mock,
		topic:    "orders",
		done:     make(chan struct{}),
	}

	received := make(chan *messaging.OrderEvent, 1)
	finished := make(chan error, 1)
	go func() {
		finished <- consumer.Consume(func(e *messaging.OrderEvent) error {
			received <- e
			return nil
		})
	}()

	mock.messages <- &sarama.ConsumerMessage{Value: messaging.MarshalOrderEvent(testEvent())}

	select {
	case e := <-received:
		assert.Equal(t, testEvent(), e)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	require.NoError(t, consumer.Close())
	require.NoError(t, consumer.Close())

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerBadPayload(t *testing.T) {
	mock := &mockConsumer{
		messages: make(chan *sarama.ConsumerMessage, 1),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	consumer := &Consumer{consumer: mock, done: make(chan struct{})}

	mock.messages <- &sarama.ConsumerMessage{Offset: 12, Value: []byte{0x80}}
	err := consumer.Consume(func(*messaging.OrderEvent) error { return nil })
	assert.ErrorContains(t, err, "offset 12")
}
