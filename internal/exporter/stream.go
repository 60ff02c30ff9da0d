package exporter

import (
	"context"
	"fmt"
	"io"
	"time"

	"mysql-dbdriver/internal/driver"
)

// ExportResult contains stats about the export.
type ExportResult struct {
	RowsProcessed int64
	Duration      time.Duration
}

// Export drains rows into encoder. It writes the header, every row, and
// flushes; finishing the document is left to encoder.Close. rows is closed
// on every path, so unfetched rows never outlive the call.
func Export(ctx context.Context, rows driver.RowStreamer, encoder RowEncoder) (*ExportResult, error) {
	start := time.Now()
	defer rows.Close()

	if err := encoder.WriteHeader(rows.Columns()); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var rowCount int64
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := encoder.WriteRow(rows.Values()); err != nil {
			return nil, fmt.Errorf("row write failed: %w", err)
		}
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("encoder flush error: %w", err)
	}

	return &ExportResult{
		RowsProcessed: rowCount,
		Duration:      time.Since(start),
	}, nil
}

// NewEncoder returns the encoder for format: "json", "excel", "pdf", "tsv",
// or CSV for anything else.
func NewEncoder(format string, w io.Writer) RowEncoder {
	switch format {
	case "json":
		return NewJSONEncoder(w)
	case "excel", "xlsx":
		return NewExcelEncoder(w)
	case "pdf":
		return NewPDFEncoder(w)
	case "tsv":
		return NewTSVEncoder(w)
	}
	return NewCSVEncoder(w)
}

// Extension is the file extension for format.
func Extension(format string) string {
	switch format {
	case "json":
		return "jsonl"
	case "excel", "xlsx":
		return "xlsx"
	case "pdf", "tsv":
		return format
	}
	return "csv"
}
