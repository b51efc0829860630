package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidDate is returned when a search date is not YYYY-MM-DD.
// Search recovers from it by dropping the date filter.
var ErrInvalidDate = errors.New("invalid date")

// DateLayout is the format accepted for search date bounds.
const DateLayout = "2006-01-02"

const recentLimit = 5

// ReportService computes dashboard metrics and searches the ledger.
type ReportService struct {
	storage  Storage
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

// ReportOption configures a ReportService.
type ReportOption func(*ReportService)

// WithLocation sets the zone used for calendar days and search dates.
func WithLocation(loc *time.Location) ReportOption {
	return func(r *ReportService) { r.location = loc }
}

// WithReportClock sets the time source that defines "today".
func WithReportClock(now func() time.Time) ReportOption {
	return func(r *ReportService) { r.now = now }
}

// NewReportService creates a new ReportService.
func NewReportService(storage Storage, logger *zap.Logger, opts ...ReportOption) *ReportService {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	r := &ReportService{
		storage:  storage,
		logger:   logger,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dashboard aggregates the whole ledger, today's and this month's sales.
func (r *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := r.now().In(r.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.location)

	total, err := r.storage.Sum(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("total sales: %w", err)
	}
	today, err := r.storage.Sum(ctx, Filter{From: dayStart, To: endOf(dayStart.AddDate(0, 0, 1))})
	if err != nil {
		return nil, fmt.Errorf("today sales: %w", err)
	}
	month, err := r.storage.Sum(ctx, Filter{From: monthStart, To: endOf(monthStart.AddDate(0, 1, 0))})
	if err != nil {
		return nil, fmt.Errorf("month sales: %w", err)
	}
	customers, err := r.storage.CountDistinct(ctx, FieldCustomerName)
	if err != nil {
		return nil, fmt.Errorf("distinct customers: %w", err)
	}
	recent, err := r.storage.List(ctx, Filter{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	return &Dashboard{
		TotalSales:        total,
		TodaySales:        today,
		MonthSales:        month,
		DistinctCustomers: customers,
		Recent:            recent,
	}, nil
}

// Search lists transactions containing query verbatim, newest first. Only
// an empty query disables the text filter. The date range applies only when
// both dates parse; otherwise it is ignored.
func (r *ReportService) Search(ctx context.Context, query, startDate, endDate string) ([]Transaction, error) {
	f := Filter{Text: query}

	if startDate != "" && endDate != "" {
		from, to, err := r.parseRange(startDate, endDate)
		if err != nil {
			r.logger.Debug("ignoring date filter",
				zap.String("start_date", startDate),
				zap.String("end_date", endDate),
				zap.Error(err),
			)
		} else {
			f.From, f.To = from, to
		}
	}

	result, err := r.storage.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	r.logger.Debug("transaction search completed",
		zap.String("query", f.Text),
		zap.Int("results_count", len(result)),
	)
	return result, nil
}

// parseRange turns two calendar dates into [start 00:00:00, end 23:59:59].
func (r *ReportService) parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, strings.TrimSpace(startDate), r.location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidDate, startDate)
	}
	end, err := time.ParseInLocation(DateLayout, strings.TrimSpace(endDate), r.location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidDate, endDate)
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, r.location)
	return start, end, nil
}

// endOf returns the last instant before t.
func endOf(t time.Time) time.Time {
	return t.Add(-time.Nanosecond)
}
