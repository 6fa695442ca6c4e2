package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"skugen/internal/infrastructure/storage/postgres"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ Channel = (*amqp.Channel)(nil)

// Publisher delivers outbox messages to the exchange. The routing key is the
// event type, e.g. "sku.assigned".
type Publisher struct {
	ch       Channel
	exchange string
	appID    string
}

var _ postgres.OutboxHandler = (*Publisher)(nil)

// NewPublisher creates a new outbox publisher.
func NewPublisher(ch Channel, exchange, appID string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, appID: appID}
}

// Handle implements postgres.OutboxHandler.
func (p *Publisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	err := p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		msg.EventType, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID.String(),
			Type:         msg.EventType,
			AppId:        p.appID,
			Timestamp:    msg.CreatedAt,
			Headers: amqp.Table{
				"shop":         msg.Shop,
				"aggregate_id": msg.AggregateID,
			},
			Body: msg.Payload,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	return nil
}
