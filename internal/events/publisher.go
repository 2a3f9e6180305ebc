package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/finledger/ledger-service/internal/domain"
)

// Routing keys under the ledger topic exchange.
const (
	RoutingKeyAccountCreated       = "ledger.account.created"
	RoutingKeyTransactionProcessed = "ledger.transaction.processed"
)

// RabbitMQPublisher implements domain.AuditPublisher by publishing JSON
// events to a durable topic exchange. The engine treats it as fire-and-forget:
// publish failures are reported to the caller, which logs and moves on.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitMQPublisher(url, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("audit publisher initialized", zap.String("exchange", exchange))

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// accountCreatedEvent is the wire shape of an account creation audit event.
type accountCreatedEvent struct {
	EventType       string    `json:"eventType"`
	AccountID       string    `json:"accountId"`
	AccountNumber   string    `json:"accountNumber"`
	Balance         int64     `json:"balance"`
	ReservedBalance int64     `json:"reservedBalance"`
	CreditLimit     int64     `json:"creditLimit"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// transactionProcessedEvent is the wire shape of a transaction audit event.
type transactionProcessedEvent struct {
	EventType            string    `json:"eventType"`
	TransactionID        string    `json:"transactionId"`
	Operation            string    `json:"operation"`
	AccountID            string    `json:"accountId"`
	DestinationAccountID string    `json:"destinationAccountId,omitempty"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	ReferenceID          string    `json:"referenceId"`
	Status               string    `json:"status"`
	ResultingBalance     int64     `json:"resultingBalance"`
	ResultingAvailable   int64     `json:"resultingAvailable"`
	Message              string    `json:"message"`
	CreatedAt            time.Time `json:"createdAt"`
}

// AccountCreated publishes an account creation event.
func (p *RabbitMQPublisher) AccountCreated(ctx context.Context, account *domain.Account) error {
	event := accountCreatedEvent{
		EventType:       "account.created",
		AccountID:       account.ID.String(),
		AccountNumber:   account.Number,
		Balance:         account.Balance,
		ReservedBalance: account.ReservedBalance,
		CreditLimit:     account.CreditLimit,
		Status:          string(account.Status),
		CreatedAt:       account.CreatedAt,
	}
	return p.publish(ctx, RoutingKeyAccountCreated, event)
}

// TransactionProcessed publishes a transaction audit event.
func (p *RabbitMQPublisher) TransactionProcessed(ctx context.Context, txn *domain.Transaction) error {
	event := transactionProcessedEvent{
		EventType:          "transaction.processed",
		TransactionID:      txn.ID.String(),
		Operation:          string(txn.Operation),
		AccountID:          txn.AccountID.String(),
		Amount:             txn.Amount,
		Currency:           txn.Currency,
		ReferenceID:        txn.ReferenceID,
		Status:             string(txn.Status),
		ResultingBalance:   txn.ResultingBalance,
		ResultingAvailable: txn.ResultingAvailable,
		Message:            txn.Message,
		CreatedAt:          txn.CreatedAt,
	}
	if txn.DestinationAccountID != nil {
		event.DestinationAccountID = txn.DestinationAccountID.String()
	}
	return p.publish(ctx, RoutingKeyTransactionProcessed, event)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("audit event published", zap.String("routing_key", routingKey))
	return nil
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
