package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

var testBusiness = Business{
	Name:           "Acme Stores",
	Address:        "12 Broad Street, Lagos",
	Contact:        "+234 800 000 0000",
	CurrencySymbol: "₦",
}

type drawnString struct {
	font Font
	x, y float64
	text string
}

type recordingCanvas struct {
	strings []drawnString
	lines   int
	images  []string
	imgErr  error
}

func (r *recordingCanvas) DrawImage(path string, _, _, _, _ float64) error {
	r.images = append(r.images, path)
	return r.imgErr
}

func (r *recordingCanvas) DrawString(font Font, x, y float64, text string) {
	r.strings = append(r.strings, drawnString{font: font, x: x, y: y, text: text})
}

func (r *recordingCanvas) DrawLine(_, _, _, _ float64) { r.lines++ }

func (r *recordingCanvas) Output(w io.Writer) error {
	_, err := io.WriteString(w, "recorded")
	return err
}

func (r *recordingCanvas) texts() []string {
	out := make([]string, len(r.strings))
	for i, s := range r.strings {
		out[i] = s.text
	}
	return out
}

func newLedger(t *testing.T) sales.Storage {
	t.Helper()
	s := sales.NewLocalStorage()
	require.NoError(t, s.Init(context.Background()))
	return s
}

func insert(t *testing.T, s sales.Storage, n int64, customer, items, amount string, at time.Time) sales.Transaction {
	t.Helper()
	tx, err := s.Insert(context.Background(), sales.Transaction{
		InvoiceNumber: sales.FormatInvoiceNumber(n),
		CustomerName:  customer,
		Items:         items,
		Amount:        decimal.RequireFromString(amount),
		Timestamp:     at,
	})
	require.NoError(t, err)
	return tx
}

func TestReceipt_Layout(t *testing.T) {
	s := newLedger(t)
	tx := insert(t, s, 1, "Ada Obi", "2x Rice, 1x Oil", "1500.5", time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))

	canvas := &recordingCanvas{}
	e := NewExporter(s, testBusiness, zaptest.NewLogger(t),
		WithLocation(time.UTC),
		WithCanvas(func() (Canvas, error) { return canvas, nil }))

	doc, err := e.Receipt(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt_1.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "recorded", string(doc.Body))

	assert.Equal(t, []string{
		"Acme Stores",
		"12 Broad Street, Lagos",
		"+234 800 000 0000",
		"INVOICE / RECEIPT",
		"Invoice No: INV-0001",
		"Customer: Ada Obi",
		"Items: 2x Rice, 1x Oil",
		"Amount: ₦1500.50",
		"Date: 2024-03-09 14:05:07",
		"Thank you for your business!",
		"Powered by Digital Receipt & Invoice System",
	}, canvas.texts())
	assert.Equal(t, 2, canvas.lines)
	assert.Empty(t, canvas.images)

	// fields step down the page in 20pt increments
	fields := canvas.strings[4:9]
	for i, f := range fields {
		assert.Equal(t, 30.0, f.x)
		assert.Equal(t, 470.0-20*float64(i), f.y)
		assert.Equal(t, fontField, f.font)
	}
}

func TestReceipt_DateUsesLocation(t *testing.T) {
	s := newLedger(t)
	tx := insert(t, s, 1, "Ada", "Rice", "1", time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC))

	canvas := &recordingCanvas{}
	e := NewExporter(s, testBusiness, zaptest.NewLogger(t),
		WithLocation(time.FixedZone("WAT", 3600)),
		WithCanvas(func() (Canvas, error) { return canvas, nil }))

	_, err := e.Receipt(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Contains(t, canvas.texts(), "Date: 2024-03-10 00:30:00")
}

func TestReceipt_NotFound(t *testing.T) {
	e := NewExporter(newLedger(t), testBusiness, zaptest.NewLogger(t))

	doc, err := e.Receipt(context.Background(), 42)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, sales.ErrNotFound)
}

func TestReceipt_Logo(t *testing.T) {
	s := newLedger(t)
	tx := insert(t, s, 1, "Ada", "Rice", "1", time.Now())
	logo := writeLogo(t)

	t.Run("drawn when present", func(t *testing.T) {
		canvas := &recordingCanvas{}
		b := testBusiness
		b.LogoPath = logo
		e := NewExporter(s, b, zaptest.NewLogger(t), WithCanvas(func() (Canvas, error) { return canvas, nil }))

		_, err := e.Receipt(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{logo}, canvas.images)
	})

	t.Run("skipped when missing", func(t *testing.T) {
		canvas := &recordingCanvas{}
		b := testBusiness
		b.LogoPath = filepath.Join(t.TempDir(), "nope.png")
		e := NewExporter(s, b, zaptest.NewLogger(t), WithCanvas(func() (Canvas, error) { return canvas, nil }))

		_, err := e.Receipt(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Empty(t, canvas.images)
	})

	t.Run("broken image does not fail the receipt", func(t *testing.T) {
		canvas := &recordingCanvas{imgErr: errors.New("bad image")}
		b := testBusiness
		b.LogoPath = logo
		e := NewExporter(s, b, zaptest.NewLogger(t), WithCanvas(func() (Canvas, error) { return canvas, nil }))

		_, err := e.Receipt(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Len(t, canvas.strings, 11)
	})
}

func TestReceipt_PDF(t *testing.T) {
	s := newLedger(t)
	tx := insert(t, s, 1, "Ada", "Rice", "99.9", time.Now())

	b := testBusiness
	b.LogoPath = writeLogo(t)
	e := NewExporter(s, b, zaptest.NewLogger(t))

	doc, err := e.Receipt(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
}

func TestPDFCanvas_BadImage(t *testing.T) {
	c, err := NewPDFCanvas("")
	require.NoError(t, err)

	bogus := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not a png"), 0o600))

	assert.Error(t, c.DrawImage(bogus, 30, 530, 60, 60))

	c.DrawString(fontField, 30, 470, "still usable")
	var buf bytes.Buffer
	require.NoError(t, c.Output(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTable_CSV(t *testing.T) {
	s := newLedger(t)
	insert(t, s, 1, "Ada", "Rice", "10", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	insert(t, s, 2, "Grace, Ltd", `Oil "5L"`, "2.5", time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC))

	e := NewExporter(s, testBusiness, zaptest.NewLogger(t), WithLocation(time.UTC))

	var buf bytes.Buffer
	require.NoError(t, e.Table(context.Background(), FormatCSV, &buf))
	require.True(t, strings.HasPrefix(buf.String(), utf8BOM))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		Columns,
		{"INV-0002", "Grace, Ltd", `Oil "5L"`, "2.50", "2024-01-02 10:30"},
		{"INV-0001", "Ada", "Rice", "10.00", "2024-01-01 09:00"},
	}, records)
}

func TestTable_CSVEmptyLedger(t *testing.T) {
	e := NewExporter(newLedger(t), testBusiness, zaptest.NewLogger(t))

	var buf bytes.Buffer
	require.NoError(t, e.Table(context.Background(), FormatCSV, &buf))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{Columns}, records)
}

func TestTable_XLSX(t *testing.T) {
	s := newLedger(t)
	insert(t, s, 1, "Ada", "Rice", "10", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	insert(t, s, 2, "Grace", "Oil", "2.5", time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC))

	e := NewExporter(s, testBusiness, zaptest.NewLogger(t), WithLocation(time.UTC))

	var buf bytes.Buffer
	require.NoError(t, e.Table(context.Background(), FormatXLSX, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"INV-0002", "Grace", "Oil"}, rows[1][:3])
	assert.Equal(t, "2024-01-02 10:30", rows[1][4])
	assert.Equal(t, "INV-0001", rows[2][0])

	amount, err := f.GetCellValue(sheetName, "D2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "2.5", amount)
}

func TestTable_UnknownFormat(t *testing.T) {
	e := NewExporter(newLedger(t), testBusiness, zaptest.NewLogger(t))
	assert.Error(t, e.Table(context.Background(), Format("pdf"), io.Discard))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, "CSV": FormatCSV, "xlsx": FormatXLSX, "excel": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)

	assert.Equal(t, "transactions.xlsx", FormatXLSX.Filename())
	assert.Equal(t, "transactions.csv", FormatCSV.Filename())
}

func writeLogo(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestPDFCanvas_DefaultFontKeepsUTF8(t *testing.T) {
	c, err := NewPDFCanvas("")
	require.NoError(t, err)
	assert.Equal(t, utf8Family, c.family)

	for _, text := range []string{
		"Amount: ₦12.00",
		"Customer: Ọlá Adébáyọ̀",
		"Customer: 王",
	} {
		assert.Equal(t, text, c.tr(text))
	}

	c.DrawString(fontField, 30, 410, "Amount: ₦12.00")
	c.DrawString(fontFooter, 30, 390, "Customer: Ọlá")
	var buf bytes.Buffer
	require.NoError(t, c.Output(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDFCanvas_CoreFontsTranscode(t *testing.T) {
	c, err := NewPDFCanvas(CoreFonts)
	require.NoError(t, err)
	assert.Empty(t, c.family)
	assert.Equal(t, "Amount: 12.00", c.tr("Amount: 12.00"))
	assert.NotEqual(t, "Amount: ₦12.00", c.tr("Amount: ₦12.00"))
}
