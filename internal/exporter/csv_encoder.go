package exporter

import (
	"bufio"
	"encoding/csv"
	"io"
)

// CSVEncoder writes delimited text: comma separated by default, tab
// separated from NewTSVEncoder.
type CSVEncoder struct {
	out    *bufio.Writer
	csv    *csv.Writer
	scratch []string
}

func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return newDelimited(w, ',')
}

// NewTSVEncoder is a CSVEncoder separating fields with tabs.
func NewTSVEncoder(w io.Writer) *CSVEncoder {
	return newDelimited(w, '\t')
}

func newDelimited(w io.Writer, comma rune) *CSVEncoder {
	out := bufio.NewWriterSize(w, 64*1024)
	cw := csv.NewWriter(out)
	cw.Comma = comma
	return &CSVEncoder{out: out, csv: cw}
}

// WriteHeader writes the column names. Names are sanitized like values
// since they come from the query text.
func (e *CSVEncoder) WriteHeader(columns []string) error {
	return e.WriteRow(columns)
}

// WriteRow writes one record. csv.Writer does not keep the slice, so the
// scratch buffer is reused.
func (e *CSVEncoder) WriteRow(values []string) error {
	if cap(e.scratch) < len(values) {
		e.scratch = make([]string, len(values))
	}
	rec := e.scratch[:len(values)]
	for i := range values {
		rec[i] = sanitize(values[i])
	}
	return e.csv.Write(rec)
}

// Flush pushes buffered records to the underlying writer.
func (e *CSVEncoder) Flush() error {
	e.csv.Flush()
	if err := e.csv.Error(); err != nil {
		return err
	}
	return e.out.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.csv.Error()
}

// Close flushes. The underlying writer is left open.
func (e *CSVEncoder) Close() error {
	return e.Flush()
}
