package driver

import "context"

// Ops is the operation table a host dispatches through. Every call
// operates on a host-owned Handle; no two goroutines may use the same
// Handle at once.
type Ops interface {
	// Name returns the driver name (e.g., "MySQL").
	Name() string

	// DbType describes the driver and, once connected, the server version.
	DbType(h *Handle) string

	// Open parses the handle's datasource and connects.
	Open(ctx context.Context, h *Handle) error

	// Close releases the native connection. It never fails.
	Close(h *Handle)

	// DML runs a statement that is not expected to return rows.
	DML(ctx context.Context, h *Handle, sql string) error

	// Select runs a statement that must return rows and binds its column
	// names into the handle's row template.
	Select(ctx context.Context, h *Handle, sql string) (*Row, error)

	// GetRow fetches the next row into row. It returns EndData once the rows
	// are exhausted.
	GetRow(ctx context.Context, h *Handle, row *Row) (Outcome, error)

	// Flush and Cancel discard any rows not yet fetched.
	Flush(h *Handle)
	Cancel(h *Handle)

	// Exec runs a statement of unknown shape and reports DML or Rows.
	Exec(ctx context.Context, h *Handle, sql string) (Outcome, error)

	// BindRow writes the pending result set's column names into the
	// handle's row template.
	BindRow(h *Handle) (*Row, error)
}

// RowStreamer iterates over query results.
// It is designed to be memory-efficient and stream-oriented.
type RowStreamer interface {
	// Columns returns the column names bound for the result set.
	Columns() []string

	// Next advances to the next row. Returns false when there are no more rows or an error occurs.
	Next() bool

	// Values returns the current row's cells. The slice is reused by Next.
	Values() []string

	// Err returns the error, if any, that was encountered during iteration.
	Err() error

	// Close discards unfetched rows and frees resources.
	Close() error
}

var (
	_ Ops         = (*Driver)(nil)
	_ RowStreamer = (*Stream)(nil)
)
