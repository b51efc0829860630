package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("invalid transaction")

// ValidationError reports a bad or missing input field on create.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Notifier is told about every transaction once it is stored.
type Notifier interface {
	TransactionRecorded(ctx context.Context, tx Transaction) error
}

// Service records transactions; it is the only write path into the ledger.
type Service struct {
	storage  Storage
	numberer Numberer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNumberer replaces the default SequentialNumberer.
func WithNumberer(n Numberer) Option {
	return func(s *Service) { s.numberer = n }
}

// WithNotifier registers a notifier for recorded transactions.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock sets the time source used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(storage Storage, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	s := &Service{
		storage:  storage,
		numberer: NewSequentialNumberer(storage),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTransaction validates the input, assigns the next invoice number and
// stores the transaction. A lost numbering race surfaces as
// ErrConstraintViolation; retrying is up to the caller.
func (s *Service) RecordTransaction(ctx context.Context, customerName, items, amount string) (*Transaction, error) {
	tx, err := newTransaction(customerName, items, amount)
	if err != nil {
		s.logger.Warn("rejected transaction", zap.Error(err))
		return nil, err
	}

	id, number, err := s.numberer.NextInvoice(ctx)
	if err != nil {
		s.logger.Error("failed to compute invoice number", zap.Error(err))
		return nil, err
	}
	tx.ID = id
	tx.InvoiceNumber = number
	tx.Timestamp = s.now().Truncate(time.Microsecond)

	stored, err := s.storage.Insert(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrConstraintViolation) {
			s.logger.Warn("invoice number collision", zap.String("invoice_number", number))
			return nil, err
		}
		s.logger.Error("failed to save transaction", zap.String("invoice_number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.logger.Info("transaction recorded",
		zap.Int64("id", stored.ID),
		zap.String("invoice_number", stored.InvoiceNumber),
		zap.String("amount", stored.Amount.StringFixed(2)),
	)

	if s.notifier != nil {
		if err := s.notifier.TransactionRecorded(ctx, stored); err != nil {
			s.logger.Warn("failed to publish transaction", zap.String("invoice_number", stored.InvoiceNumber), zap.Error(err))
		}
	}
	return &stored, nil
}

func newTransaction(customerName, items, amount string) (Transaction, error) {
	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return Transaction{}, &ValidationError{Field: "customer", Message: "is required"}
	}
	items = strings.TrimSpace(items)
	if items == "" {
		return Transaction{}, &ValidationError{Field: "items", Message: "is required"}
	}
	value, err := parseAmount(amount)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		CustomerName: customerName,
		Items:        items,
		Amount:       value,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "is required"}
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "must be a number"}
	}
	if value.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return value.Round(2), nil
}
