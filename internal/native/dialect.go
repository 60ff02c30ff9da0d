package native

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect binds a database/sql driver to the metadata statements and error
// decoding of one backend.
type Dialect struct {
	// Name is the display name reported by the driver.
	Name string
	// Driver is the database/sql driver name.
	Driver string

	dsn    func(p Params) string
	decode func(err error) (Status, bool)

	// connector, when set, opens the database through a driver.Connector
	// whose rows report their command result.
	connector func(dsn string) (driver.Connector, error)
	// qualify splits the column names the client returns into fields.
	qualify   func(names []string) []Field

	versionQuery   string
	listDBs        string
	listDBsLike    string
	listTables     string
	listTablesLike string
	rowCount       string

	// use returns the statement switching to database name; nil when the
	// backend cannot switch databases on an open connection.
	use func(name string) string
}

var (
	// MySQL is backed by github.com/go-sql-driver/mysql.
	MySQL = &Dialect{
		Name:           "MySQL",
		Driver:         "mysql",
		dsn:            mysqlDSN,
		decode:         mysqlStatus,
		versionQuery:   "SELECT VERSION()",
		listDBs:        "SHOW DATABASES",
		listDBsLike:    "SHOW DATABASES LIKE ?",
		listTables:     "SHOW TABLES",
		listTablesLike: "SHOW TABLES LIKE ?",
		rowCount:       "SELECT ROW_COUNT()",
		qualify:        splitAliased,
		use: func(name string) string {
			return "USE `" + strings.ReplaceAll(name, "`", "``") + "`"
		},
	}

	// PostgreSQL is backed by github.com/lib/pq. The affected-row count of
	// a statement comes from its command tag; lib/pq drops the source table
	// of result columns.
	PostgreSQL = &Dialect{
		Name:           "PostgreSQL",
		Driver:         "postgres",
		dsn:            postgresDSN,
		decode:         postgresStatus,
		connector: func(dsn string) (driver.Connector, error) {
			return pq.NewConnector(dsn)
		},
		versionQuery:   "SHOW server_version",
		listDBs:        "SELECT datname FROM pg_catalog.pg_database WHERE NOT datistemplate ORDER BY datname",
		listDBsLike:    "SELECT datname FROM pg_catalog.pg_database WHERE NOT datistemplate AND datname LIKE $1 ORDER BY datname",
		listTables:     "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename",
		listTablesLike: "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() AND tablename LIKE $1 ORDER BY tablename",
	}

	// SQLite is backed by github.com/glebarez/go-sqlite. The datasource's
	// database field is the file path or ":memory:". Columns carry no
	// source table.
	SQLite = &Dialect{
		Name:           "SQLite",
		Driver:         "sqlite",
		dsn:            sqliteDSN,
		decode:         sqliteStatus,
		versionQuery:   "SELECT sqlite_version()",
		listDBs:        "SELECT name FROM pragma_database_list ORDER BY seq",
		listDBsLike:    "SELECT name FROM pragma_database_list WHERE name LIKE ? ORDER BY seq",
		listTables:     "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		listTablesLike: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name LIKE ? ORDER BY name",
		rowCount:       "SELECT changes()",
	}
)

// ErrUnknownDialect is returned by Lookup.
var ErrUnknownDialect = errors.New("unknown dialect")

// Lookup returns the dialect registered under name ("mysql", "postgres", "sqlite").
func Lookup(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}

// open returns the pool for p and, for dialects with a connector, the slot
// its zero-column statements report into.
func (d *Dialect) open(p Params) (*sql.DB, *commandResult, error) {
	if d.connector == nil {
		db, err := sql.Open(d.Driver, d.DSN(p))
		return db, nil, err
	}
	base, err := d.connector(d.DSN(p))
	if err != nil {
		return nil, nil, err
	}
	last := &commandResult{}
	return sql.OpenDB(&resultConnector{Connector: base, last: last}), last, nil
}

// fields maps client column names to fields.
func (d *Dialect) fields(names []string) []Field {
	if d.qualify != nil {
		return d.qualify(names)
	}
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name}
	}
	return fields
}

// splitAliased undoes go-sql-driver/mysql's ColumnsWithAlias, which names a
// column "table.column" whenever the server reports its table. Columns
// without a table, such as computed ones, are left whole unless their own
// name contains a dot.
func splitAliased(names []string) []Field {
	fields := make([]Field, len(names))
	for i, name := range names {
		if table, col, ok := strings.Cut(name, "."); ok && table != "" && col != "" {
			fields[i] = Field{Name: col, Table: table}
			continue
		}
		fields[i] = Field{Name: name}
	}
	return fields
}

// DSN renders p in the driver's connection string format.
func (d *Dialect) DSN(p Params) string {
	return d.dsn(p)
}

// Status translates an error returned by the driver.
func (d *Dialect) Status(err error, fallback int) Status {
	if err == nil {
		return Status{}
	}
	if st, ok := d.decode(err); ok {
		return st
	}
	return genericStatus(err, fallback)
}

func genericStatus(err error, fallback int) Status {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return Status{Code: CodeServerLost, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Status{Code: CodeServerLost, Message: err.Error()}
	case errors.As(err, &netErr):
		return Status{Code: CodeConnection, Message: err.Error()}
	}
	return Status{Code: fallback, Message: err.Error()}
}

func mysqlDSN(p Params) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = p.Host
	if p.Port != 0 {
		cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
	}
	cfg.DBName = p.Database
	cfg.Timeout = p.ConnectTimeout
	// SHOW ... LIKE ? is not preparable on every server version.
	cfg.InterpolateParams = true
	// report the source table of each column as "table.column"
	cfg.ColumnsWithAlias = true
	return cfg.FormatDSN()
}

func mysqlStatus(err error) (Status, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return Status{}, false
	}
	return Status{
		Code:     int(me.Number),
		SQLState: strings.TrimRight(string(me.SQLState[:]), "\x00"),
		Message:  me.Message,
	}, true
}

func postgresDSN(p Params) string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	if p.ConnectTimeout > 0 {
		secs := int(p.ConnectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}

	host := p.Host
	if p.Port != 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     host,
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u.String()
}

func postgresStatus(err error) (Status, bool) {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return Status{}, false
	}
	return Status{
		Code:     CodeServer,
		SQLState: string(pe.Code),
		Message:  pe.Message,
	}, true
}

func sqliteDSN(p Params) string {
	if p.ConnectTimeout <= 0 {
		return p.Database
	}
	return p.Database + "?_pragma=busy_timeout(" + strconv.FormatInt(p.ConnectTimeout.Milliseconds(), 10) + ")"
}

func sqliteStatus(err error) (Status, bool) {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return Status{}, false
	}
	code := coded.Code()
	if code == 0 {
		code = CodeServer
	}
	return Status{Code: code, Message: err.Error()}, true
}
