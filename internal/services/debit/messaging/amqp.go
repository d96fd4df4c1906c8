package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/event"
)

const amqpExchange = "debit.events"

// AMQPPublisher publishes lifecycle events to a RabbitMQ topic exchange.
// The routing key is the event type, so consumers can bind to individual
// lifecycle transitions.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialAMQP connects to the broker and declares the event exchange.
func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(amqpExchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", amqpExchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: channel}, nil
}

// HandleEvent publishes one event. It satisfies EventHandler so the
// publisher can subscribe to a Bus.
func (p *AMQPPublisher) HandleEvent(ctx context.Context, evt event.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Type, err)
	}
	err = p.channel.PublishWithContext(ctx, amqpExchange, string(evt.Type), false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     evt.ID,
		CorrelationId: evt.CorrelationID,
		Timestamp:     evt.Timestamp,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", evt.Type, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close amqp publisher: %v", errs)
	}
	return nil
}
