package native

import (
	"context"
	"database/sql/driver"
)

// commandResult holds the outcome of the last statement that returned no
// columns, for clients that only report it on the rows (lib/pq keeps the
// command tag there).
type commandResult struct {
	affected int64
	ok       bool
}

// resultRowser is implemented by rows that carry their command result.
type resultRowser interface {
	Result() driver.Result
}

// resultConnector hands out connections whose zero-column rows record
// their affected-row count into last when closed.
type resultConnector struct {
	driver.Connector
	last *commandResult
}

func (c *resultConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &resultConn{Conn: conn, last: c.last}, nil
}

// resultConn forwards every optional interface database/sql looks for.
type resultConn struct {
	driver.Conn
	last *commandResult
}

var (
	_ driver.QueryerContext     = (*resultConn)(nil)
	_ driver.ExecerContext      = (*resultConn)(nil)
	_ driver.ConnPrepareContext = (*resultConn)(nil)
	_ driver.ConnBeginTx        = (*resultConn)(nil)
	_ driver.Pinger             = (*resultConn)(nil)
	_ driver.SessionResetter    = (*resultConn)(nil)
	_ driver.Validator          = (*resultConn)(nil)
	_ driver.NamedValueChecker  = (*resultConn)(nil)
)

func (c *resultConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	*c.last = commandResult{}
	rows, err := q.QueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if src, ok := rows.(resultRowser); ok && len(rows.Columns()) == 0 {
		return &resultRows{Rows: rows, src: src, last: c.last}, nil
	}
	return rows, nil
}

func (c *resultConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if e, ok := c.Conn.(driver.ExecerContext); ok {
		return e.ExecContext(ctx, query, args)
	}
	return nil, driver.ErrSkip
}

func (c *resultConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, query)
	}
	return c.Conn.Prepare(query)
}

func (c *resultConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	return c.Conn.Begin() //nolint:staticcheck
}

func (c *resultConn) Ping(ctx context.Context) error {
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *resultConn) ResetSession(ctx context.Context) error {
	if r, ok := c.Conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *resultConn) IsValid() bool {
	if v, ok := c.Conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *resultConn) CheckNamedValue(nv *driver.NamedValue) error {
	if n, ok := c.Conn.(driver.NamedValueChecker); ok {
		return n.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

type resultRows struct {
	driver.Rows
	src  resultRowser
	last *commandResult
}

// Close drains the statement, after which the command result is known.
func (r *resultRows) Close() error {
	if err := r.Rows.Close(); err != nil {
		return err
	}
	if n, err := r.src.Result().RowsAffected(); err == nil {
		*r.last = commandResult{affected: n, ok: true}
	}
	return nil
}
