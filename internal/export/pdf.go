package export

import (
	"io"
	"math"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	pageWidth  = 400.0
	pageHeight = 600.0

	utf8Family = "ReceiptFont"

	// CoreFonts selects the built-in Helvetica faces. Text is transcoded
	// to cp1252 and characters outside it are lost.
	CoreFonts = "core"
)

// PDFCanvas draws on a single fpdf page, converting bottom-left
// coordinates to fpdf's top-left origin.
type PDFCanvas struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	family string
}

var _ Canvas = (*PDFCanvas)(nil)

// NewPDFCanvas starts a 400x600pt page. An empty font embeds the Go
// fonts, a file path embeds that TrueType font, and CoreFonts uses the
// cp1252-only Helvetica faces. Embedded fonts keep text as UTF-8.
func NewPDFCanvas(font string) (*PDFCanvas, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	c := &PDFCanvas{pdf: pdf, tr: func(s string) string { return s }, family: utf8Family}
	switch font {
	case CoreFonts:
		c.family = ""
		c.tr = pdf.UnicodeTranslatorFromDescriptor("")
	case "":
		pdf.AddUTF8FontFromBytes(utf8Family, "", goregular.TTF)
		pdf.AddUTF8FontFromBytes(utf8Family, "B", gobold.TTF)
		pdf.AddUTF8FontFromBytes(utf8Family, "I", goitalic.TTF)
	default:
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(utf8Family, style, font)
		}
	}

	pdf.AddPage()
	if pdf.Err() {
		return nil, pdf.Error()
	}
	return c, nil
}

func (c *PDFCanvas) DrawString(font Font, x, y float64, text string) {
	family := font.Family
	if c.family != "" {
		family = c.family
	}
	c.pdf.SetFont(family, font.Style, font.Size)
	c.pdf.Text(x, pageHeight-y, c.tr(text))
}

func (c *PDFCanvas) DrawLine(x1, y1, x2, y2 float64) {
	c.pdf.Line(x1, pageHeight-y1, x2, pageHeight-y2)
}

// DrawImage keeps the aspect ratio and centres the image in its box.
// A failed image load is reported and leaves the page usable.
func (c *PDFCanvas) DrawImage(path string, x, y, w, h float64) error {
	opts := fpdf.ImageOptions{ReadDpi: true}
	info := c.pdf.RegisterImageOptions(path, opts)
	if c.pdf.Err() || info == nil {
		err := c.pdf.Error()
		c.pdf.ClearError()
		return err
	}

	scale := math.Min(w/info.Width(), h/info.Height())
	dw, dh := info.Width()*scale, info.Height()*scale
	left := x + (w-dw)/2
	bottom := y + (h-dh)/2

	c.pdf.ImageOptions(path, left, pageHeight-bottom-dh, dw, dh, false, opts, 0, "")
	return nil
}

func (c *PDFCanvas) Output(w io.Writer) error {
	return c.pdf.Output(w)
}
