// Package export renders ledger data as receipts and tabular files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// ReceiptDateLayout formats the Date line of a receipt.
const ReceiptDateLayout = "2006-01-02 15:04:05"

const (
	receiptHeading  = "INVOICE / RECEIPT"
	footerThanks    = "Thank you for your business!"
	footerPoweredBy = "Powered by Digital Receipt & Invoice System"
)

// Font selects a typeface for Canvas.DrawString.
type Font struct {
	Family string
	Style  string // "", "B" or "I"
	Size   float64
}

var (
	fontTitle   = Font{Family: "Helvetica", Style: "B", Size: 16}
	fontHeader  = Font{Family: "Helvetica", Size: 10}
	fontHeading = Font{Family: "Helvetica", Style: "B", Size: 14}
	fontField   = Font{Family: "Helvetica", Size: 12}
	fontFooter  = Font{Family: "Helvetica", Style: "I", Size: 11}
)

// Canvas is a fixed-layout drawing surface. Coordinates are in points,
// measured from the bottom-left corner of the page.
type Canvas interface {
	// DrawImage fits the image into the w x h box anchored at (x, y).
	DrawImage(path string, x, y, w, h float64) error
	DrawString(font Font, x, y float64, text string)
	DrawLine(x1, y1, x2, y2 float64)
	Output(w io.Writer) error
}

// Business holds the static lines printed on every receipt.
type Business struct {
	Name           string
	Address        string
	Contact        string
	LogoPath       string
	CurrencySymbol string
}

// Document is a rendered file ready to be sent to a client.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReceiptField is one labelled value on a receipt.
type ReceiptField struct {
	Label string
	Value string
}

// Exporter renders receipts and tables from the ledger.
type Exporter struct {
	storage   sales.Storage
	business  Business
	location  *time.Location
	newCanvas func() (Canvas, error)
	logger    *zap.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLocation sets the zone timestamps are printed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) { e.location = loc }
}

// WithCanvas replaces the PDF canvas factory.
func WithCanvas(newCanvas func() (Canvas, error)) Option {
	return func(e *Exporter) { e.newCanvas = newCanvas }
}

// NewExporter creates an Exporter drawing receipts on PDF pages with the
// embedded Go fonts.
func NewExporter(storage sales.Storage, business Business, logger *zap.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	e := &Exporter{
		storage:  storage,
		business: business,
		location: time.Local,
		newCanvas: func() (Canvas, error) {
			return NewPDFCanvas("")
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Receipt renders the receipt of one transaction.
// Returns sales.ErrNotFound if the transaction does not exist.
func (e *Exporter) Receipt(ctx context.Context, id int64) (*Document, error) {
	tx, err := e.storage.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	canvas, err := e.newCanvas()
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	e.drawReceipt(canvas, *tx)

	var buf bytes.Buffer
	if err := canvas.Output(&buf); err != nil {
		e.logger.Error("failed to render receipt", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return &Document{
		Filename:    fmt.Sprintf("receipt_%d.pdf", tx.ID),
		ContentType: "application/pdf",
		Body:        buf.Bytes(),
	}, nil
}

// ReceiptFields returns the labelled values printed for tx, in order.
func (e *Exporter) ReceiptFields(tx sales.Transaction) []ReceiptField {
	return []ReceiptField{
		{Label: "Invoice No", Value: tx.InvoiceNumber},
		{Label: "Customer", Value: tx.CustomerName},
		{Label: "Items", Value: tx.Items},
		{Label: "Amount", Value: e.business.CurrencySymbol + tx.Amount.StringFixed(2)},
		{Label: "Date", Value: tx.Timestamp.In(e.location).Format(ReceiptDateLayout)},
	}
}

// drawReceipt lays out a 400x600pt receipt. Positions are fixed; long
// values run past the right edge instead of wrapping.
func (e *Exporter) drawReceipt(c Canvas, tx sales.Transaction) {
	e.drawLogo(c)

	c.DrawString(fontTitle, 110, 570, e.business.Name)
	c.DrawString(fontHeader, 110, 555, e.business.Address)
	c.DrawString(fontHeader, 110, 540, e.business.Contact)

	c.DrawLine(20, 520, 380, 520)

	c.DrawString(fontHeading, 140, 500, receiptHeading)

	y := 470.0
	for _, f := range e.ReceiptFields(tx) {
		c.DrawString(fontField, 30, y, f.Label+": "+f.Value)
		y -= 20
	}

	c.DrawLine(20, 370, 380, 370)

	c.DrawString(fontFooter, 110, 350, footerThanks)
	c.DrawString(fontFooter, 80, 335, footerPoweredBy)
}

func (e *Exporter) drawLogo(c Canvas) {
	path := e.business.LogoPath
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("cannot read logo", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := c.DrawImage(path, 30, 530, 60, 60); err != nil {
		e.logger.Warn("skipping logo", zap.String("path", path), zap.Error(err))
	}
}
