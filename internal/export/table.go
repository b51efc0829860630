package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// TableDateLayout formats the Date column of exported tables.
const TableDateLayout = "2006-01-02 15:04"

const sheetName = "Transactions"

// utf8BOM lets spreadsheet programs detect the encoding of CSV files.
const utf8BOM = "\ufeff"

// Columns is the header row of every exported table.
var Columns = []string{"Invoice No", "Customer", "Items", "Amount", "Date"}

// Format is a tabular export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv", "xlsx" and "excel".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) Filename() string {
	return "transactions." + string(f)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table writes the whole ledger, newest first, to w.
func (e *Exporter) Table(ctx context.Context, format Format, w io.Writer) error {
	txs, err := e.storage.List(ctx, sales.Filter{})
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		err = e.writeCSV(w, txs)
	case FormatXLSX:
		err = e.writeXLSX(w, txs)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		e.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		return err
	}

	e.logger.Debug("ledger exported", zap.String("format", string(format)), zap.Int("rows", len(txs)))
	return nil
}

func (e *Exporter) row(tx sales.Transaction) []string {
	return []string{
		tx.InvoiceNumber,
		tx.CustomerName,
		tx.Items,
		tx.Amount.StringFixed(2),
		tx.Timestamp.In(e.location).Format(TableDateLayout),
	}
}

func (e *Exporter) writeCSV(w io.Writer, txs []sales.Transaction) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := cw.Write(e.row(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Exporter) writeXLSX(w io.Writer, txs []sales.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			tx.InvoiceNumber,
			tx.CustomerName,
			tx.Items,
			tx.Amount.InexactFloat64(),
			tx.Timestamp.In(e.location).Format(TableDateLayout),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
