package native

import (
	"context"
	"database/sql"
	"errors"
	"math"
)

// SQLConnector implements Connector on database/sql. Each Conn pins one
// physical connection of a private *sql.DB, so session state such as the
// selected database survives between calls.
type SQLConnector struct {
	dialect *Dialect
	// buffered selects store-result semantics: the whole result is read into
	// memory and the connection is free again as soon as StoreResult returns.
	buffered bool
}

// NewSQLConnector returns a connector for dialect. With buffered false a
// result set keeps the server cursor open until it is exhausted or freed.
func NewSQLConnector(dialect *Dialect, buffered bool) *SQLConnector {
	return &SQLConnector{dialect: dialect, buffered: buffered}
}

func (c *SQLConnector) Name() string {
	return c.dialect.Name
}

func (c *SQLConnector) Connect(ctx context.Context, p Params) (Conn, Status) {
	db, last, err := c.dialect.open(p)
	if err != nil {
		return nil, c.dialect.Status(err, CodeConnection)
	}
	db.SetMaxOpenConns(1)

	if p.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ConnectTimeout)
		defer cancel()
	}

	conn, err := db.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, c.dialect.Status(err, CodeConnection)
	}

	sc := &sqlConn{
		dialect:  c.dialect,
		db:       db,
		conn:     conn,
		database: p.Database,
		buffered: c.buffered,
		last:     last,
	}
	if err := conn.QueryRowContext(ctx, c.dialect.versionQuery).Scan(&sc.version); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, c.dialect.Status(err, CodeConnection)
	}
	return sc, Status{}
}

type sqlConn struct {
	dialect  *Dialect
	db       *sql.DB
	conn     *sql.Conn
	database string
	version  string
	buffered bool

	// pending holds the rows of the last Query until StoreResult claims them.
	pending    *sql.Rows
	fieldCount int

	affected      uint64
	affectedKnown bool

	// last is filled by the connector when it reports command results.
	last *commandResult

	// stream is the open unbuffered result set, if any.
	stream *streamResult
	closed bool
}

func (c *sqlConn) ServerInfo() string {
	return c.version
}

// busy reports the status for a command issued while an unbuffered result
// still occupies the connection.
func (c *sqlConn) busy() Status {
	if c.closed {
		return Failf(CodeServerLost, "Lost connection to %s server", c.dialect.Name)
	}
	if c.stream != nil {
		return Failf(CodeOutOfSync, "Commands out of sync; you can't run this command now")
	}
	return Status{}
}

func (c *sqlConn) discardPending() {
	if c.pending != nil {
		_ = c.pending.Close()
		c.pending = nil
		c.takeCommandResult()
	}
	c.fieldCount = 0
}

// takeCommandResult adopts the affected-row count of a closed zero-column
// statement, if the connector reported one.
func (c *sqlConn) takeCommandResult() {
	if c.last == nil || !c.last.ok {
		return
	}
	c.affected = rowCount(c.last.affected)
	c.affectedKnown = true
	*c.last = commandResult{}
}

func (c *sqlConn) SelectDB(ctx context.Context, name string) Status {
	if st := c.busy(); !st.OK() {
		return st
	}
	c.discardPending()

	if c.dialect.use == nil {
		if name == c.database {
			return Status{}
		}
		return Failf(CodeNotSupported, "%s cannot switch database on an open connection", c.dialect.Name)
	}
	if _, err := c.conn.ExecContext(ctx, c.dialect.use(name)); err != nil {
		return c.dialect.Status(err, CodeServer)
	}
	c.database = name
	return Status{}
}

func (c *sqlConn) Exec(ctx context.Context, query string) Status {
	if st := c.busy(); !st.OK() {
		return st
	}
	c.discardPending()
	c.affectedKnown = false

	res, err := c.conn.ExecContext(ctx, query)
	if err != nil {
		return c.dialect.Status(err, CodeServer)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.affected = rowCount(n)
		c.affectedKnown = true
	}
	return Status{}
}

func (c *sqlConn) Query(ctx context.Context, query string) Status {
	if st := c.busy(); !st.OK() {
		return st
	}
	c.discardPending()
	c.affectedKnown = false

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return c.dialect.Status(err, CodeServer)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return c.dialect.Status(err, CodeServer)
	}
	c.pending = rows
	c.fieldCount = len(cols)
	return Status{}
}

func (c *sqlConn) FieldCount() int {
	return c.fieldCount
}

func (c *sqlConn) StoreResult(ctx context.Context) (ResultSet, Status) {
	rows := c.pending
	c.pending = nil
	if rows == nil {
		return nil, Status{}
	}

	if c.fieldCount == 0 {
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, c.dialect.Status(err, CodeServer)
		}
		c.takeCommandResult()
		return nil, Status{}
	}

	fields, err := columnFields(c.dialect, rows)
	if err != nil {
		_ = rows.Close()
		return nil, c.dialect.Status(err, CodeServer)
	}

	if !c.buffered {
		c.stream = &streamResult{conn: c, rows: rows, fields: fields}
		return c.stream, Status{}
	}

	res, st := c.readAll(ctx, rows, fields)
	if !st.OK() {
		return nil, st
	}
	return res, Status{}
}

func (c *sqlConn) AffectedRows(ctx context.Context) (uint64, Status) {
	if c.pending != nil && c.fieldCount == 0 {
		c.discardPending()
	}
	if c.affectedKnown {
		return c.affected, Status{}
	}
	if c.dialect.rowCount == "" {
		return 0, Failf(CodeNotSupported, "%s does not report affected rows for this statement", c.dialect.Name)
	}
	if st := c.busy(); !st.OK() {
		return 0, st
	}
	c.discardPending()

	var n int64
	if err := c.conn.QueryRowContext(ctx, c.dialect.rowCount).Scan(&n); err != nil {
		return 0, c.dialect.Status(err, CodeServer)
	}
	c.affected = rowCount(n)
	c.affectedKnown = true
	return c.affected, Status{}
}

// rowCount maps the client's signed counter onto the unsigned one; -1
// ("no count") becomes the all-ones value, as with the C client.
func rowCount(n int64) uint64 {
	if n < 0 {
		return math.MaxUint64
	}
	return uint64(n)
}

func (c *sqlConn) ListDBs(ctx context.Context, wild string) (ResultSet, Status) {
	return c.list(ctx, c.dialect.listDBs, c.dialect.listDBsLike, wild)
}

func (c *sqlConn) ListTables(ctx context.Context, wild string) (ResultSet, Status) {
	return c.list(ctx, c.dialect.listTables, c.dialect.listTablesLike, wild)
}

func (c *sqlConn) list(ctx context.Context, all, like, wild string) (ResultSet, Status) {
	if st := c.busy(); !st.OK() {
		return nil, st
	}
	c.discardPending()

	var (
		rows *sql.Rows
		err  error
	)
	if wild == "" {
		rows, err = c.conn.QueryContext(ctx, all)
	} else {
		rows, err = c.conn.QueryContext(ctx, like, wild)
	}
	if err != nil {
		return nil, c.dialect.Status(err, CodeServer)
	}

	fields, err := columnFields(c.dialect, rows)
	if err != nil {
		_ = rows.Close()
		return nil, c.dialect.Status(err, CodeServer)
	}
	return c.readAll(ctx, rows, fields)
}

func (c *sqlConn) readAll(ctx context.Context, rows *sql.Rows, fields []Field) (*bufferedResult, Status) {
	defer rows.Close()

	res := &bufferedResult{fields: fields}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, c.dialect.Status(err, CodeServerLost)
		}
		row, err := scanRow(rows, len(fields))
		if err != nil {
			return nil, c.dialect.Status(err, CodeServer)
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.dialect.Status(err, CodeServer)
	}
	return res, Status{}
}

func (c *sqlConn) Close() Status {
	if c.closed {
		return Status{}
	}
	c.closed = true

	if c.stream != nil {
		c.stream.Free()
	}
	c.discardPending()

	err := errors.Join(c.conn.Close(), c.db.Close())
	return c.dialect.Status(err, CodeUnknown)
}

func columnFields(d *Dialect, rows *sql.Rows) ([]Field, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return d.fields(cols), nil
}

func scanRow(rows *sql.Rows, n int) ([]sql.NullString, error) {
	row := make([]sql.NullString, n)
	dest := make([]interface{}, n)
	for i := range row {
		dest[i] = &row[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return row, nil
}

// bufferedResult is a fully materialised result set.
type bufferedResult struct {
	fields []Field
	rows   [][]sql.NullString
	pos    int
}

func (r *bufferedResult) NumFields() int  { return len(r.fields) }
func (r *bufferedResult) Fields() []Field { return r.fields }

func (r *bufferedResult) FetchRow(ctx context.Context) ([]sql.NullString, Status) {
	if r.pos >= len(r.rows) {
		return nil, Status{}
	}
	row := r.rows[r.pos]
	r.pos++
	return row, Status{}
}

func (r *bufferedResult) Free() {
	r.rows = nil
	r.pos = 0
}

// streamResult reads rows from the server one at a time. The connection
// accepts no other command until it is exhausted or freed.
type streamResult struct {
	conn   *sqlConn
	rows   *sql.Rows
	fields []Field
	done   bool
}

func (r *streamResult) NumFields() int  { return len(r.fields) }
func (r *streamResult) Fields() []Field { return r.fields }

func (r *streamResult) FetchRow(ctx context.Context) ([]sql.NullString, Status) {
	if r.done {
		return nil, Status{}
	}
	if !r.rows.Next() {
		r.done = true
		if err := r.rows.Err(); err != nil {
			return nil, r.conn.dialect.Status(err, CodeServerLost)
		}
		return nil, Status{}
	}
	row, err := scanRow(r.rows, len(r.fields))
	if err != nil {
		return nil, r.conn.dialect.Status(err, CodeServer)
	}
	return row, Status{}
}

func (r *streamResult) Free() {
	if r.rows != nil {
		_ = r.rows.Close()
		r.rows = nil
	}
	r.done = true
	if r.conn.stream == r {
		r.conn.stream = nil
	}
}
