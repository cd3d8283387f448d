// Package events publishes committed ledger mutations to RabbitMQ so
// downstream consumers (notifications, reporting) can react asynchronously.
// Events are published after commit, never inside the transaction; a lost
// event is logged and tolerated, a phantom event is not possible.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// Routing keys for ledger events.
const (
	TransferCompletedKey = "ledger.transfer.completed"
	DepositCompletedKey  = "ledger.deposit.completed"
)

// TransferCompleted is emitted once per committed transfer.
type TransferCompleted struct {
	TransferID  uuid.UUID       `json:"transfer_id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// DepositCompleted is emitted once per committed deposit.
type DepositCompleted struct {
	AccountID  uuid.UUID       `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher is implemented by types that can publish ledger events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// Producer publishes JSON events to a topic exchange.
type Producer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewProducer connects to RabbitMQ and declares the exchange. Use a bounded
// dial timeout so startup does not hang on an unreachable broker.
func NewProducer(amqpURL, exchange string) (*Producer, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel failed: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("exchange declare failed: %w", err)
	}

	return &Producer{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *Producer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("event marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
}

func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher is used when no broker is configured or the broker is
// unreachable at startup; publishes are skipped with a warning.
type NopPublisher struct {
	Logger *slog.Logger
}

func (n *NopPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	if n.Logger != nil {
		n.Logger.Warn("event publish skipped, no broker configured", "routing_key", routingKey)
	}
	return nil
}

func (n *NopPublisher) Close() {}
