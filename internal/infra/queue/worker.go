package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// WelcomeSender delivers the welcome message to a newly created contact.
type WelcomeSender interface {
	SendWelcome(to, name string) error
}

// Consumer is the part of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

var ErrDeliveriesClosed = errors.New("delivery channel closed")

type Worker struct {
	Channel Consumer
	Sender  WelcomeSender
	Logger  logrus.FieldLogger
}

func NewWorker(ch Consumer, sender WelcomeSender, logger logrus.FieldLogger) *Worker {
	return &Worker{
		Channel: ch,
		Sender:  sender,
		Logger:  logger,
	}
}

// Start consumes queueName until ctx is cancelled or the broker closes the
// channel.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering consumer on %s: %w", queueName, err)
	}

	w.Logger.WithField("queue", queueName).Info("welcome worker started")

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("welcome worker stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			w.handleDelivery(d)
		}
	}
}

func (w *Worker) handleDelivery(d amqp.Delivery) {
	var event ContactEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.Logger.WithError(err).Warn("dropping malformed contact event")
		d.Nack(false, false)
		return
	}

	log := w.Logger.WithFields(logrus.Fields{
		"event":      event.Type,
		"contact_id": event.ContactID,
	})

	if err := w.processMessage(event); err != nil {
		log.WithError(err).Error("contact event failed")
		d.Nack(false, false)
		return
	}

	log.Debug("contact event processed")
	d.Ack(false)
}

func (w *Worker) processMessage(event ContactEvent) error {
	switch event.Type {
	case EventContactCreated:
		if event.Email == "" {
			return nil
		}
		return w.Sender.SendWelcome(event.Email, event.Name)
	default:
		// Only creations are bound to the welcome queue; anything else is acked.
		return nil
	}
}
