// Package events publishes ledger events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// DefaultTopic receives one message per recorded transaction.
const DefaultTopic = "transaction_recorded"

const typeTransactionRecorded = "transaction.recorded"

// Event is the JSON envelope written to the topic.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Transaction sales.Transaction `json:"transaction"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements sales.Notifier on top of a kafka.Writer.
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

var _ sales.Notifier = (*Publisher)(nil)

// NewPublisher writes to topic on the given brokers. An empty topic
// falls back to DefaultTopic.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		logger: logger,
		now:    time.Now,
	}
}

// TransactionRecorded publishes tx keyed by its invoice number.
func (p *Publisher) TransactionRecorded(ctx context.Context, tx sales.Transaction) error {
	msg, err := p.message(tx)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published",
		zap.String("type", typeTransactionRecorded),
		zap.String("invoice_number", tx.InvoiceNumber))
	return nil
}

func (p *Publisher) message(tx sales.Transaction) (kafka.Message, error) {
	data, err := json.Marshal(Event{
		ID:          uuid.NewString(),
		Type:        typeTransactionRecorded,
		OccurredAt:  p.now().UTC(),
		Transaction: tx,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(tx.InvoiceNumber),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(typeTransactionRecorded)},
		},
	}, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
