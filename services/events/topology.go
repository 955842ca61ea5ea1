package events

import (
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
)

// queueBinding is a work queue on the mailsync exchange with its dead letter queue.
type queueBinding struct {
	queue      string
	dlq        string
	routingKey string
}

var queueBindings = []queueBinding{
	{queue: QueueEmailSync, dlq: DLQEmailSync, routingKey: RoutingKeyEmailSync},
	{queue: QueueEmailActions, dlq: DLQEmailActions, routingKey: RoutingKeyEmailActions},
}

// queueArguments routes rejected and expired deliveries to the dead letter exchange.
func queueArguments(messageTTLMillis int64) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             messageTTLMillis,
	}
}

// declareTopology declares the exchanges and every queue binding. Declarations are idempotent.
func (r *RabbitMQPublisher) declareTopology() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	for _, exchange := range []string{ExchangeDeadLetter, ExchangeMailsyncDirect} {
		if err := channel.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to declare exchange %s", exchange)
		}
	}

	args := queueArguments(r.config.MessageTTL.Milliseconds())
	for _, binding := range queueBindings {
		if _, err := channel.QueueDeclare(binding.dlq, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to declare DLQ %s", binding.dlq)
		}
		if err := channel.QueueBind(binding.dlq, RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", binding.dlq)
		}

		if _, err := channel.QueueDeclare(binding.queue, true, false, false, false, args); err != nil {
			return errors.Wrapf(err, "Failed to declare queue %s", binding.queue)
		}
		if err := channel.QueueBind(binding.queue, binding.routingKey, ExchangeMailsyncDirect, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", binding.queue, ExchangeMailsyncDirect)
		}
	}
	return nil
}
