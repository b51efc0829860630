package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// transactionRecord is the row layout of the transactions table.
type transactionRecord struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceNumber string          `gorm:"size:20;not null;uniqueIndex"`
	CustomerName  string          `gorm:"size:100;not null;index"`
	Items         string          `gorm:"size:500;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	RecordedAt    time.Time       `gorm:"not null;index"`
}

func (transactionRecord) TableName() string { return "transactions" }

func toRecord(tx Transaction) transactionRecord {
	return transactionRecord{
		ID:            tx.ID,
		InvoiceNumber: tx.InvoiceNumber,
		CustomerName:  tx.CustomerName,
		Items:         tx.Items,
		Amount:        tx.Amount,
		RecordedAt:    tx.Timestamp.UTC(),
	}
}

func (r transactionRecord) transaction() Transaction {
	return Transaction{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		CustomerName:  r.CustomerName,
		Items:         r.Items,
		Amount:        r.Amount,
		Timestamp:     r.RecordedAt,
	}
}

// GormStorage stores the ledger in a single SQL table through gorm.
type GormStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Storage = (*GormStorage)(nil)

// NewGormStorage opens a gorm connection with the given dialector.
func NewGormStorage(dialector gorm.Dialector, logger *zap.Logger) (*GormStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{logger.Sugar()}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &GormStorage{db: db, logger: logger}, nil
}

// OpenStorage picks a backend from the DSN scheme:
// "memory:", "sqlite:<path>" or "postgres://...".
func OpenStorage(dsn string, logger *zap.Logger) (Storage, error) {
	switch {
	case dsn == "" || dsn == "memory:":
		return NewLocalStorage(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		s, err := NewGormStorage(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := s.db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer; one connection also keeps ":memory:" databases shared.
		sqlDB.SetMaxOpenConns(1)
		return s, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewGormStorage(postgres.Open(dsn), logger)
	default:
		return nil, fmt.Errorf("unsupported dsn %q", dsn)
	}
}

// Init creates the transactions table and its unique index.
func (s *GormStorage) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&transactionRecord{}); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.logger.Info("ledger schema ready", zap.String("dialect", s.db.Dialector.Name()))
	return nil
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Insert(ctx context.Context, tx Transaction) (Transaction, error) {
	rec := toRecord(tx)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicateKey(err) {
			return Transaction{}, ErrConstraintViolation
		}
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return rec.transaction(), nil
}

func (s *GormStorage) FindByID(ctx context.Context, id int64) (*Transaction, error) {
	var rec transactionRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find transaction %d: %w", id, err)
	}
	tx := rec.transaction()
	return &tx, nil
}

func (s *GormStorage) List(ctx context.Context, f Filter) ([]Transaction, error) {
	var recs []transactionRecord
	q := s.db.WithContext(ctx).Scopes(filterScope(f)).Order("recorded_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	result := make([]Transaction, len(recs))
	for i := range recs {
		result[i] = recs[i].transaction()
	}
	return result, nil
}

// Sum totals amount over matching rows. Amounts carry two decimals, so the
// result is rounded to cents to absorb float sums from SQLite.
func (s *GormStorage) Sum(ctx context.Context, f Filter) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := s.db.WithContext(ctx).Model(&transactionRecord{}).
		Scopes(filterScope(f)).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum amounts: %w", err)
	}
	return total.Round(2), nil
}

func (s *GormStorage) CountDistinct(ctx context.Context, field Field) (int64, error) {
	if !field.valid() {
		return 0, ErrInvalidField
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&transactionRecord{}).Distinct(string(field)).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count distinct %s: %w", field, err)
	}
	return n, nil
}

func (s *GormStorage) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	row := s.db.WithContext(ctx).Model(&transactionRecord{}).Select("COALESCE(MAX(id), 0)").Row()
	if err := row.Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	return maxID, nil
}

// filterScope is a gorm scope applying Filter's text and date predicates.
func filterScope(f Filter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Text != "" {
			like := "%" + escapeLike(strings.ToLower(f.Text)) + "%"
			db = db.Where(
				`(LOWER(invoice_number) LIKE ? ESCAPE '\' OR LOWER(customer_name) LIKE ? ESCAPE '\' OR LOWER(items) LIKE ? ESCAPE '\')`,
				like, like, like,
			)
		}
		if !f.From.IsZero() {
			db = db.Where("recorded_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			db = db.Where("recorded_at <= ?", f.To.UTC())
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key value")
}

// gormWriter routes gorm's logger through zap. Duplicate-key traces are
// expected numbering races and the service reports them, so they go to debug.
type gormWriter struct {
	s *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	for _, arg := range args {
		if err, ok := arg.(error); ok && isDuplicateKey(err) {
			w.s.Debugf(format, args...)
			return
		}
	}
	w.s.Warnf(format, args...)
}
