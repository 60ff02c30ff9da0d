package exporter

import (
	"io"
	"strconv"
)

// RowEncoder is implemented by every export format.
// Cells arrive as the driver renders them: strings, with NULL as "".
type RowEncoder interface {
	// WriteHeader writes the column names. Call it exactly once, before any row.
	WriteHeader(columns []string) error

	// WriteRow writes one row. The slice may be reused by the caller after
	// the call returns.
	WriteRow(values []string) error

	// Flush writes buffered rows to the underlying writer. Formats that
	// can only be written as a whole (XLSX, PDF) do nothing until Close.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	// Close finishes the document and flushes it.
	io.Closer
}

// sanitize guards spreadsheet consumers against formula injection: text
// starting with =, +, - or @ is prefixed with a single quote. Numbers are
// left alone.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return s
		}
		return "'" + s
	}
	return s
}
