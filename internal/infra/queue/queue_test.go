package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

type MockWelcomeSender struct {
	mock.Mock
}

func (m *MockWelcomeSender) SendWelcome(to, name string) error {
	args := m.Called(to, name)
	return args.Error(0)
}

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}
func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPublishContactEvent(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub)
	id := uuid.New()

	err := p.PublishContactEvent(context.Background(), ContactEvent{
		Type:      EventContactCreated,
		ContactID: id,
		FirstName: "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, "contact.created", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.NotEmpty(t, pub.msg.MessageId)

	var got ContactEvent
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, id, got.ContactID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestPublishContactEventError(t *testing.T) {
	p := NewProducer(&fakePublisher{err: amqp.ErrClosed})

	err := p.PublishContactEvent(context.Background(), ContactEvent{Type: EventContactDeleted})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func delivery(t *testing.T, ack *fakeAcknowledger, body any) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw}
}

func TestHandleDeliverySendsWelcome(t *testing.T) {
	sender := new(MockWelcomeSender)
	sender.On("SendWelcome", "ada@example.com", "Ada Lovelace").Return(nil)
	w := NewWorker(nil, sender, quietLogger())

	ack := &fakeAcknowledger{}
	w.handleDelivery(delivery(t, ack, ContactEvent{
		Type: EventContactCreated, ContactID: uuid.New(), Name: "Ada Lovelace",
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
	}))

	sender.AssertExpectations(t)
	assert.True(t, ack.acked)
}

func TestHandleDeliverySkipsContactsWithoutEmail(t *testing.T) {
	sender := new(MockWelcomeSender)
	w := NewWorker(nil, sender, quietLogger())

	ack := &fakeAcknowledger{}
	w.handleDelivery(delivery(t, ack, ContactEvent{Type: EventContactCreated, LastName: "Lovelace"}))

	sender.AssertNotCalled(t, "SendWelcome", mock.Anything, mock.Anything)
	assert.True(t, ack.acked)
}

func TestHandleDeliveryMalformed(t *testing.T) {
	w := NewWorker(nil, new(MockWelcomeSender), quietLogger())

	ack := &fakeAcknowledger{}
	w.handleDelivery(delivery(t, ack, []byte("{not json")))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestHandleDeliverySendFailure(t *testing.T) {
	sender := new(MockWelcomeSender)
	sender.On("SendWelcome", "ada@example.com", "Lovelace").Return(errors.New("smtp down"))
	w := NewWorker(nil, sender, quietLogger())

	ack := &fakeAcknowledger{}
	w.handleDelivery(delivery(t, ack, ContactEvent{Type: EventContactCreated, Name: "Lovelace", LastName: "Lovelace", Email: "ada@example.com"}))

	assert.True(t, ack.nacked)
	assert.False(t, ack.acked)
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
}

func (f *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(&fakeConsumer{deliveries: make(chan amqp.Delivery)}, new(MockWelcomeSender), quietLogger())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, WelcomeQueue) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartReturnsWhenChannelCloses(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	close(deliveries)
	w := NewWorker(&fakeConsumer{deliveries: deliveries}, new(MockWelcomeSender), quietLogger())

	assert.ErrorIs(t, w.Start(context.Background(), WelcomeQueue), ErrDeliveriesClosed)
}
