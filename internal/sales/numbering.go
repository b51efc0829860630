package sales

import (
	"context"
	"fmt"
)

// Numberer hands out the ID and invoice number for the next transaction.
// The number is always FormatInvoiceNumber(id).
type Numberer interface {
	NextInvoice(ctx context.Context) (id int64, number string, err error)
}

// SequentialNumberer derives the next number from the highest stored ID.
// Two callers may compute the same candidate; the store's primary key and
// unique index on invoice_number decide which insert wins.
type SequentialNumberer struct {
	storage Storage
}

// NewSequentialNumberer creates a numberer reading from storage.
func NewSequentialNumberer(storage Storage) *SequentialNumberer {
	return &SequentialNumberer{storage: storage}
}

func (n *SequentialNumberer) NextInvoice(ctx context.Context) (int64, string, error) {
	maxID, err := n.storage.MaxID(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("read last transaction id: %w", err)
	}
	return maxID + 1, FormatInvoiceNumber(maxID + 1), nil
}

// FormatInvoiceNumber renders id as INV-NNNN; the width grows past 9999.
func FormatInvoiceNumber(id int64) string {
	return fmt.Sprintf("INV-%04d", id)
}
