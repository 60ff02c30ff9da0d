package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFEncoder implements RowEncoder as a bordered grid on A4 landscape pages.
// The document is held in memory until Close.
type PDFEncoder struct {
	pdf      *fpdf.Fpdf
	w        io.Writer
	tr       func(string) string
	colWidth float64
	closed   bool
}

// NewPDFEncoder creates a new PDF encoder.
func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	pdf.AddPage()
	return &PDFEncoder{
		pdf: pdf,
		w:   w,
		// core fonts are cp1252
		tr: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// WriteHeader writes the table headers and fixes the column width.
func (e *PDFEncoder) WriteHeader(columns []string) error {
	if err := e.pdf.Error(); err != nil {
		return err
	}

	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	n := len(columns)
	if n == 0 {
		n = 1
	}
	e.colWidth = (pageWidth - left - right) / float64(n)

	e.pdf.SetFont("Arial", "B", 10)
	for _, col := range columns {
		e.pdf.CellFormat(e.colWidth, 7, e.tr(col), "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 10)
	return e.pdf.Error()
}

// WriteRow writes one single-line row; long cells are clipped by the grid.
func (e *PDFEncoder) WriteRow(values []string) error {
	if err := e.pdf.Error(); err != nil {
		return err
	}
	for _, v := range values {
		e.pdf.CellFormat(e.colWidth, 7, e.tr(v), "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	return e.pdf.Error()
}

// Flush is a no-op: the document is written once, by Close.
func (e *PDFEncoder) Flush() error {
	return e.pdf.Error()
}

func (e *PDFEncoder) Error() error {
	return e.pdf.Error()
}

func (e *PDFEncoder) Close() error {
	if e.closed {
		return e.pdf.Error()
	}
	e.closed = true
	return e.pdf.Output(e.w)
}
