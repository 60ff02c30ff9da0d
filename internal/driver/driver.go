// Package driver binds host-owned database handles to a native client.
//
// A Driver is the process-wide driver configuration plus the operation
// table a host dispatches through. Handles move between three states:
// disconnected, connected and idle, and connected with rows pending.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"mysql-dbdriver/internal/dsn"
	"mysql-dbdriver/internal/native"
)

// DefaultVersion is reported by the "version" command.
const DefaultVersion = "mysql-dbdriver v0.5"

// Options configure a Driver.
type Options struct {
	// Name overrides the connector's display name.
	Name string
	// Version is the driver version string.
	Version string
	// IncludeTableNames binds columns as "table.column" when the client
	// reports a source table.
	IncludeTableNames bool
	// SerializeNative serializes connection setup and the query/store-result
	// sequence across all handles. Only needed for client libraries that
	// share buffers between connections.
	SerializeNative bool
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Driver adapts a native.Connector to the host operation table.
type Driver struct {
	connector native.Connector
	name      string
	version   string
	timeout   time.Duration
	logger    *slog.Logger

	tableNames atomic.Bool
	// serial is nil unless native calls must be serialized.
	serial *semaphore.Weighted
}

// New creates a driver on top of connector.
func New(connector native.Connector, opts Options) *Driver {
	d := &Driver{
		connector: connector,
		name:      opts.Name,
		version:   opts.Version,
		timeout:   opts.ConnectTimeout,
		logger:    opts.Logger,
	}
	if d.name == "" {
		d.name = connector.Name()
	}
	if d.version == "" {
		d.version = DefaultVersion
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if opts.SerializeNative {
		d.serial = semaphore.NewWeighted(1)
	}
	d.tableNames.Store(opts.IncludeTableNames)

	d.logger.Info("Driver loaded", "driver", d.name, "version", d.version, "serialize_native", opts.SerializeNative)
	return d
}

func (d *Driver) Name() string {
	return d.name
}

// Version returns the driver version string.
func (d *Driver) Version() string {
	return d.version
}

// IncludeTableNames reports whether column keys are table-qualified.
func (d *Driver) IncludeTableNames() bool {
	return d.tableNames.Load()
}

// SetIncludeTableNames changes table qualification for all handles of d.
func (d *Driver) SetIncludeTableNames(on bool) {
	d.tableNames.Store(on)
}

// DbType returns the driver name followed by the server version once connected.
func (d *Driver) DbType(h *Handle) string {
	if h.conn == nil {
		return truncate(d.name, 100)
	}
	return truncate(d.name, 100) + " " + truncate(h.conn.ServerInfo(), 300)
}

// critical runs fn inside the native serialization section, if enabled.
func (d *Driver) critical(ctx context.Context, fn func() error) error {
	if d.serial == nil {
		return fn()
	}
	if err := d.serial.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire native lock: %w", err)
	}
	defer d.serial.Release(1)
	return fn()
}

func (d *Driver) verbose(h *Handle, msg string, args ...any) {
	if h.Verbose {
		d.logger.Info(msg, append([]any{"driver", d.name, "datasource", h.Datasource}, args...)...)
	}
}

// Open connects h using its datasource and credentials. On failure the
// handle stays disconnected and holds no native resources.
func (d *Driver) Open(ctx context.Context, h *Handle) error {
	if h.driver == nil {
		h.driver = d
	} else if h.driver != d {
		return ErrWrongDriver
	}
	if h.Connected() {
		return ErrAlreadyConnected
	}
	h.resetException()
	d.verbose(h, "Open called")

	ds, err := dsn.Parse(h.Datasource)
	if err != nil {
		d.logger.Error("Invalid datasource", "driver", d.name, "error", err)
		return fmt.Errorf("%w: %w", ErrBadDatasource, err)
	}

	return d.critical(ctx, func() error {
		d.logger.Info("Connecting", "driver", d.name, "host", ds.Host, "port", ds.Port, "database", ds.Database, "user", h.User)

		conn, st := d.connector.Connect(ctx, native.Params{
			Host:           ds.Host,
			Port:           ds.Port,
			Database:       ds.Database,
			User:           h.User,
			Password:       h.Password,
			ConnectTimeout: d.timeout,
		})
		if report(d.logger, h, st) {
			return nativeError("connect", h, st)
		}

		d.verbose(h, "Selecting database", "database", ds.Database)
		st = conn.SelectDB(ctx, ds.Database)
		if report(d.logger, h, st) {
			d.release(conn)
			return nativeError("select_db", h, st)
		}

		h.conn = conn
		return nil
	})
}

// Close releases the handle's result set and connection. It never fails.
func (d *Driver) Close(h *Handle) {
	d.verbose(h, "Close called")
	d.free(h)
	if h.conn != nil {
		d.release(h.conn)
		h.conn = nil
	}
}

func (d *Driver) release(conn native.Conn) {
	if st := conn.Close(); !st.OK() {
		d.logger.Error("Close failed", "driver", d.name, "code", st.Code, "message", truncate(st.Message, MaxErrorMessage))
	}
	if te, ok := d.connector.(native.ThreadEnder); ok {
		te.ThreadEnd()
	}
}
