// Package native is the boundary between the driver and a database client
// library. Every call returns an explicit Status instead of leaving a
// last-error value on the connection for the caller to inspect.
package native

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Client-side status codes, numbered like the MySQL client library's CR_* codes.
const (
	CodeUnknown      = 2000
	CodeConnection   = 2003
	CodeServerGone   = 2006
	CodeServerLost   = 2013
	CodeOutOfSync    = 2014
	CodeNotSupported = 2054

	// CodeServer is used for server errors that carry no numeric code.
	CodeServer = 1105
)

// ConnectionLost reports whether code means the connection is unusable.
func ConnectionLost(code int) bool {
	switch code {
	case CodeConnection, CodeServerGone, CodeServerLost:
		return true
	}
	return false
}

// Status is the outcome of a single native call. The zero value means success.
type Status struct {
	Code     int
	SQLState string
	Message  string
}

// OK reports whether the call succeeded.
func (s Status) OK() bool {
	return s.Code == 0
}

func (s Status) String() string {
	if s.OK() {
		return "ok"
	}
	if s.SQLState != "" {
		return fmt.Sprintf("(%d) [%s] %s", s.Code, s.SQLState, s.Message)
	}
	return fmt.Sprintf("(%d) %s", s.Code, s.Message)
}

// Failf builds a client-side failure status.
func Failf(code int, format string, args ...any) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Params are the connection parameters produced from a datasource and the
// handle's credentials.
type Params struct {
	Host     string
	Port     uint32
	Database string
	User     string
	Password string
	// ConnectTimeout bounds connection establishment. Zero leaves it to the client library.
	ConnectTimeout time.Duration
}

// Field describes one result column. Table is empty for computed columns
// and for clients that do not report a source table.
type Field struct {
	Name  string
	Table string
}

// Connector creates native connections.
type Connector interface {
	// Name is the client's display name, e.g. "MySQL".
	Name() string

	// Connect establishes a connection. On failure no resources are retained.
	Connect(ctx context.Context, p Params) (Conn, Status)
}

// ThreadEnder is implemented by connectors whose client library keeps
// per-thread state that must be released after a connection is closed.
type ThreadEnder interface {
	ThreadEnd()
}

// Conn is one native connection.
type Conn interface {
	// ServerInfo returns the server version string.
	ServerInfo() string

	// SelectDB switches the connection's active database.
	SelectDB(ctx context.Context, name string) Status

	// Exec runs a statement and discards any rows.
	Exec(ctx context.Context, query string) Status

	// Query submits a statement. Its rows, if any, are claimed with StoreResult.
	Query(ctx context.Context, query string) Status

	// StoreResult claims the result set of the last Query. It returns nil with
	// an OK status when the statement produced no result set.
	StoreResult(ctx context.Context) (ResultSet, Status)

	// FieldCount is the number of columns produced by the last Query.
	FieldCount() int

	// AffectedRows reports the rows changed by the last statement.
	AffectedRows(ctx context.Context) (uint64, Status)

	// ListDBs returns a single-column result of database names matching wild.
	// An empty wild matches everything.
	ListDBs(ctx context.Context, wild string) (ResultSet, Status)

	// ListTables returns a single-column result of table names matching wild.
	ListTables(ctx context.Context, wild string) (ResultSet, Status)

	// Close releases the connection. It is safe to call more than once.
	Close() Status
}

// ResultSet is a cursor over the rows of one query.
type ResultSet interface {
	NumFields() int
	Fields() []Field

	// FetchRow advances the cursor. It returns a nil row with an OK status
	// once the rows are exhausted. NULL cells have Valid == false.
	FetchRow(ctx context.Context) ([]sql.NullString, Status)

	// Free releases the result set. It is safe to call more than once.
	Free()
}
