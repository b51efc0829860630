package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a recorded sale in the ledger.
type Transaction struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	Items         string          `json:"items"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Filter narrows List and Sum. Zero values mean "no restriction".
type Filter struct {
	// Text is matched case-insensitively as a substring of the invoice
	// number, customer name or items.
	Text string
	// From and To are inclusive bounds on Timestamp.
	From time.Time
	To   time.Time
	// Limit caps the number of rows returned by List.
	Limit int
}

// Field names a column CountDistinct may operate on.
type Field string

const (
	FieldInvoiceNumber Field = "invoice_number"
	FieldCustomerName  Field = "customer_name"
	FieldItems         Field = "items"
)

func (f Field) valid() bool {
	switch f {
	case FieldInvoiceNumber, FieldCustomerName, FieldItems:
		return true
	}
	return false
}

// Dashboard is the aggregate snapshot shown on the dashboard page.
type Dashboard struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TodaySales        decimal.Decimal `json:"today_sales"`
	MonthSales        decimal.Decimal `json:"month_sales"`
	DistinctCustomers int64           `json:"total_customers"`
	Recent            []Transaction   `json:"recent_transactions"`
}
