package sales

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a transaction with the given ID is not found.
var ErrNotFound = errors.New("transaction not found")

// ErrConstraintViolation is returned when an insert would duplicate an
// invoice number. The store never retries on its own.
var ErrConstraintViolation = errors.New("invoice number already exists")

// ErrInvalidField is returned by CountDistinct for an unknown column.
var ErrInvalidField = errors.New("invalid field")

// Storage is the main interface for our ledger storage layer.
// The ledger is append-only: there is no update or delete.
type Storage interface {
	// Init connects and creates the schema if needed.
	Init(ctx context.Context) error
	Close() error

	// Insert persists tx. A non-zero tx.ID is written as given so that a
	// losing racer fails on the primary key too; zero lets the store assign one.
	Insert(ctx context.Context, tx Transaction) (Transaction, error)
	FindByID(ctx context.Context, id int64) (*Transaction, error)
	// List returns matching transactions, most recent first.
	List(ctx context.Context, f Filter) ([]Transaction, error)
	Sum(ctx context.Context, f Filter) (decimal.Decimal, error)
	CountDistinct(ctx context.Context, field Field) (int64, error)
	// MaxID returns the highest assigned ID, or 0 for an empty ledger.
	MaxID(ctx context.Context) (int64, error)
}

// LocalStorage provides an in-memory implementation for storing transactions.
type LocalStorage struct {
	mu       sync.RWMutex
	m        map[int64]Transaction
	invoices map[string]int64
	lastID   int64
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage instantiates a new LocalStorage with an empty ledger.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m:        map[int64]Transaction{},
		invoices: map[string]int64{},
	}
}

func (l *LocalStorage) Init(context.Context) error { return nil }

func (l *LocalStorage) Close() error { return nil }

// Insert stores a copy of tx under tx.ID, or under the next ID when tx.ID
// is zero. Returns ErrConstraintViolation if the ID or invoice number is taken.
func (l *LocalStorage) Insert(_ context.Context, tx Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.invoices[tx.InvoiceNumber]; taken {
		return Transaction{}, ErrConstraintViolation
	}
	if tx.ID == 0 {
		tx.ID = l.lastID + 1
	} else if _, taken := l.m[tx.ID]; taken {
		return Transaction{}, ErrConstraintViolation
	}
	if tx.ID > l.lastID {
		l.lastID = tx.ID
	}
	l.m[tx.ID] = tx
	l.invoices[tx.InvoiceNumber] = tx.ID
	return tx, nil
}

// FindByID retrieves a transaction by ID.
// Returns ErrNotFound if the transaction is not found.
func (l *LocalStorage) FindByID(_ context.Context, id int64) (*Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (l *LocalStorage) List(_ context.Context, f Filter) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Transaction, 0, len(l.m))
	for _, tx := range l.m {
		if f.matches(tx) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (l *LocalStorage) Sum(_ context.Context, f Filter) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range l.m {
		if f.matches(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (l *LocalStorage) CountDistinct(_ context.Context, field Field) (int64, error) {
	if !field.valid() {
		return 0, ErrInvalidField
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tx := range l.m {
		seen[tx.value(field)] = struct{}{}
	}
	return int64(len(seen)), nil
}

func (l *LocalStorage) MaxID(context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastID, nil
}

func (t Transaction) value(field Field) string {
	switch field {
	case FieldInvoiceNumber:
		return t.InvoiceNumber
	case FieldCustomerName:
		return t.CustomerName
	default:
		return t.Items
	}
}

func (f Filter) matches(t Transaction) bool {
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Timestamp.After(f.To) {
		return false
	}
	if f.Text == "" {
		return true
	}
	needle := strings.ToLower(f.Text)
	return strings.Contains(strings.ToLower(t.InvoiceNumber), needle) ||
		strings.Contains(strings.ToLower(t.CustomerName), needle) ||
		strings.Contains(strings.ToLower(t.Items), needle)
}
