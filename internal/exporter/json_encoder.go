package exporter

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONEncoder implements RowEncoder for JSON Lines: one object per row,
// keys in column order.
type JSONEncoder struct {
	w    *bufio.Writer
	keys [][]byte
	line []byte
	err  error
}

// NewJSONEncoder creates a new JSON Lines encoder.
func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader pre-encodes the column names used as object keys. No line is
// written.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.keys = make([][]byte, len(columns))
	for i, col := range columns {
		k, err := json.Marshal(col)
		if err != nil {
			e.err = err
			return err
		}
		e.keys[i] = k
	}
	return nil
}

func (e *JSONEncoder) WriteRow(values []string) error {
	if e.err != nil {
		return e.err
	}

	line := append(e.line[:0], '{')
	for i, v := range values {
		if i > 0 {
			line = append(line, ',')
		}
		if i < len(e.keys) {
			line = append(line, e.keys[i]...)
		} else {
			line = append(line, `"column_`...)
			line = appendInt(line, i)
			line = append(line, '"')
		}
		line = append(line, ':')

		val, err := json.Marshal(v)
		if err != nil {
			e.err = err
			return err
		}
		line = append(line, val...)
	}
	line = append(line, '}', '\n')
	e.line = line

	if _, err := e.w.Write(line); err != nil {
		e.err = err
		return err
	}
	return nil
}

func appendInt(b []byte, n int) []byte {
	if n >= 10 {
		b = appendInt(b, n/10)
	}
	return append(b, byte('0'+n%10))
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
