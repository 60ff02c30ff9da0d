/*
Package nativetest provides a scripted, in-memory native.Connector for tests.

Statements are matched by their exact text. Unscripted statements succeed
as data-modification statements affecting zero rows.

	c := nativetest.New()
	c.OnQuery("SELECT id, name FROM users").
		ReturnFields(native.Field{Name: "id", Table: "users"}, native.Field{Name: "name", Table: "users"}).
		ReturnRows(nativetest.Row("1", "ada"), nativetest.Row("2", nil))
	c.OnQuery("SELECT broken").ReturnError(1064, "You have an error in your SQL syntax")

Every result set handed out is tracked so tests can assert that none leak:

	assert.Zero(t, c.LiveResults())
*/
package nativetest

import (
	"context"
	"database/sql"
	"sync"

	"mysql-dbdriver/internal/native"
)

// Call records one native call.
type Call struct {
	Op    string
	Query string
}

// Script describes how the fake answers one statement.
type Script struct {
	status      native.Status
	storeStatus native.Status
	fields      []native.Field
	rows        [][]sql.NullString
	hasResult   bool
	fieldCount  *int
	affected    uint64
	fetchFailAt int
	fetchStatus native.Status
}

// Builder configures a Script fluently.
type Builder struct {
	s *Script
}

// ReturnFields makes the statement produce a result set with these columns.
func (b *Builder) ReturnFields(fields ...native.Field) *Builder {
	b.s.fields = append([]native.Field(nil), fields...)
	b.s.hasResult = true
	return b
}

// ReturnRows sets the rows of the result set.
func (b *Builder) ReturnRows(rows ...[]sql.NullString) *Builder {
	b.s.rows = append(b.s.rows, rows...)
	b.s.hasResult = true
	return b
}

// ReturnError makes Query and Exec fail with the given native error.
func (b *Builder) ReturnError(code int, message string) *Builder {
	b.s.status = native.Status{Code: code, Message: message}
	return b
}

// ReturnStoreError makes StoreResult fail after a successful Query.
func (b *Builder) ReturnStoreError(code int, message string) *Builder {
	b.s.storeStatus = native.Status{Code: code, Message: message}
	return b
}

// ReturnAffected sets the affected-row counter reported after the statement.
func (b *Builder) ReturnAffected(n uint64) *Builder {
	b.s.affected = n
	return b
}

// ReturnFieldCount overrides the field count reported after the statement.
func (b *Builder) ReturnFieldCount(n int) *Builder {
	b.s.fieldCount = &n
	return b
}

// WithoutResult makes StoreResult return no result set.
func (b *Builder) WithoutResult() *Builder {
	b.s.hasResult = false
	return b
}

// FailFetchAt makes the n-th FetchRow (0-based) fail.
func (b *Builder) FailFetchAt(n, code int, message string) *Builder {
	b.s.fetchFailAt = n
	b.s.fetchStatus = native.Status{Code: code, Message: message}
	return b
}

// Row builds a row; nil elements become NULL cells.
func Row(values ...interface{}) []sql.NullString {
	row := make([]sql.NullString, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			row[i] = sql.NullString{String: s, Valid: true}
		}
	}
	return row
}

// Connector is a scripted native.Connector.
type Connector struct {
	mu sync.Mutex

	name          string
	version       string
	scripts       map[string]*Script
	connectStatus native.Status
	selectStatus  native.Status
	databases     []string
	tables        []string
	listStatus    native.Status

	calls      []Call
	conns      []*Conn
	live       int
	threadEnds int
}

// New returns a connector named "MySQL".
func New() *Connector {
	return &Connector{
		name:    "MySQL",
		version: "8.0.36-test",
		scripts: make(map[string]*Script),
	}
}

// OnQuery scripts the statement with the given text.
func (c *Connector) OnQuery(query string) *Builder {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scripts[query]
	if !ok {
		s = &Script{fetchFailAt: -1}
		c.scripts[query] = s
	}
	return &Builder{s: s}
}

// FailConnect makes the next Connect calls fail.
func (c *Connector) FailConnect(code int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectStatus = native.Status{Code: code, Message: message}
}

// FailSelectDB makes SelectDB fail.
func (c *Connector) FailSelectDB(code int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectStatus = native.Status{Code: code, Message: message}
}

// FailListing makes ListDBs and ListTables fail.
func (c *Connector) FailListing(code int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listStatus = native.Status{Code: code, Message: message}
}

// SetDatabases sets the names returned by ListDBs.
func (c *Connector) SetDatabases(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases = names
}

// SetTables sets the names returned by ListTables.
func (c *Connector) SetTables(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = names
}

// Calls returns the recorded calls.
func (c *Connector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Conns returns every connection handed out, open or closed.
func (c *Connector) Conns() []*Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Conn(nil), c.conns...)
}

// LiveResults is the number of result sets handed out and not yet freed.
func (c *Connector) LiveResults() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// ThreadEnds counts ThreadEnd calls.
func (c *Connector) ThreadEnds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadEnds
}

func (c *Connector) record(op, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: op, Query: query})
}

func (c *Connector) script(query string) *Script {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.scripts[query]; ok {
		return s
	}
	return &Script{fetchFailAt: -1}
}

func (c *Connector) Name() string {
	return c.name
}

func (c *Connector) Connect(ctx context.Context, p native.Params) (native.Conn, native.Status) {
	c.record("connect", p.Database)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectStatus.OK() {
		return nil, c.connectStatus
	}
	conn := &Conn{c: c, Params: p}
	c.conns = append(c.conns, conn)
	return conn, native.Status{}
}

func (c *Connector) ThreadEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadEnds++
}

// Conn is a scripted native.Conn.
type Conn struct {
	c *Connector

	// Params are the parameters the connection was opened with.
	Params native.Params

	mu         sync.Mutex
	database   string
	last       *Script
	fieldCount int
	affected   uint64
	closed     bool
}

// Closed reports whether Close was called.
func (cn *Conn) Closed() bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.closed
}

// Database is the database selected with SelectDB.
func (cn *Conn) Database() string {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.database
}

func (cn *Conn) lost() native.Status {
	if cn.closed {
		return native.Failf(native.CodeServerLost, "Lost connection to MySQL server")
	}
	return native.Status{}
}

func (cn *Conn) ServerInfo() string {
	return cn.c.version
}

func (cn *Conn) SelectDB(ctx context.Context, name string) native.Status {
	cn.c.record("select_db", name)
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if st := cn.lost(); !st.OK() {
		return st
	}
	cn.c.mu.Lock()
	st := cn.c.selectStatus
	cn.c.mu.Unlock()
	if st.OK() {
		cn.database = name
	}
	return st
}

func (cn *Conn) Exec(ctx context.Context, query string) native.Status {
	cn.c.record("exec", query)
	s := cn.c.script(query)
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if st := cn.lost(); !st.OK() {
		return st
	}
	cn.last = nil
	cn.fieldCount = 0
	if !s.status.OK() {
		return s.status
	}
	cn.affected = s.affected
	return native.Status{}
}

func (cn *Conn) Query(ctx context.Context, query string) native.Status {
	cn.c.record("query", query)
	s := cn.c.script(query)
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if st := cn.lost(); !st.OK() {
		return st
	}
	cn.last = nil
	cn.fieldCount = 0
	if !s.status.OK() {
		return s.status
	}
	cn.last = s
	cn.affected = s.affected
	cn.fieldCount = len(s.fields)
	if s.fieldCount != nil {
		cn.fieldCount = *s.fieldCount
	}
	return native.Status{}
}

func (cn *Conn) StoreResult(ctx context.Context) (native.ResultSet, native.Status) {
	cn.c.record("store_result", "")
	cn.mu.Lock()
	s := cn.last
	cn.last = nil
	cn.mu.Unlock()

	if s == nil {
		return nil, native.Status{}
	}
	if !s.storeStatus.OK() {
		return nil, s.storeStatus
	}
	if !s.hasResult {
		return nil, native.Status{}
	}
	return cn.c.newResult(s.fields, s.rows, s.fetchFailAt, s.fetchStatus), native.Status{}
}

func (cn *Conn) FieldCount() int {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.fieldCount
}

func (cn *Conn) AffectedRows(ctx context.Context) (uint64, native.Status) {
	cn.c.record("affected_rows", "")
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if st := cn.lost(); !st.OK() {
		return 0, st
	}
	return cn.affected, native.Status{}
}

func (cn *Conn) ListDBs(ctx context.Context, wild string) (native.ResultSet, native.Status) {
	cn.c.record("list_dbs", wild)
	cn.c.mu.Lock()
	names := cn.c.databases
	cn.c.mu.Unlock()
	return cn.list("Database", names, wild)
}

func (cn *Conn) ListTables(ctx context.Context, wild string) (native.ResultSet, native.Status) {
	cn.c.record("list_tables", wild)
	cn.c.mu.Lock()
	names := cn.c.tables
	cn.c.mu.Unlock()
	return cn.list("Tables", names, wild)
}

func (cn *Conn) list(column string, names []string, wild string) (native.ResultSet, native.Status) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if st := cn.lost(); !st.OK() {
		return nil, st
	}
	cn.c.mu.Lock()
	st := cn.c.listStatus
	cn.c.mu.Unlock()
	if !st.OK() {
		return nil, st
	}

	var rows [][]sql.NullString
	for _, n := range names {
		if wild == "" || match(wild, n) {
			rows = append(rows, Row(n))
		}
	}
	return cn.c.newResult([]native.Field{{Name: column}}, rows, -1, native.Status{}), native.Status{}
}

// match implements LIKE with '%' and '_' wildcards.
func match(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if match(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '_':
		return s != "" && match(pattern[1:], s[1:])
	}
	return s != "" && s[0] == pattern[0] && match(pattern[1:], s[1:])
}

func (cn *Conn) Close() native.Status {
	cn.c.record("close", "")
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.closed = true
	return native.Status{}
}

func (c *Connector) newResult(fields []native.Field, rows [][]sql.NullString, failAt int, failStatus native.Status) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live++
	return &Result{c: c, fields: fields, rows: rows, failAt: failAt, failStatus: failStatus}
}

// Result is a scripted native.ResultSet.
type Result struct {
	c          *Connector
	fields     []native.Field
	rows       [][]sql.NullString
	pos        int
	failAt     int
	failStatus native.Status
	freed      bool
}

func (r *Result) NumFields() int         { return len(r.fields) }
func (r *Result) Fields() []native.Field { return r.fields }

func (r *Result) FetchRow(ctx context.Context) ([]sql.NullString, native.Status) {
	if r.freed {
		return nil, native.Failf(native.CodeUnknown, "fetch from freed result set")
	}
	if r.pos == r.failAt {
		r.pos++
		return nil, r.failStatus
	}
	if r.pos >= len(r.rows) {
		return nil, native.Status{}
	}
	row := r.rows[r.pos]
	r.pos++
	return row, native.Status{}
}

func (r *Result) Free() {
	if r.freed {
		return
	}
	r.freed = true
	r.c.mu.Lock()
	r.c.live--
	r.c.mu.Unlock()
}

// Freed reports whether Free was called.
func (r *Result) Freed() bool {
	return r.freed
}
