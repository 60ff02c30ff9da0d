package driver

import (
	"context"

	"mysql-dbdriver/internal/native"
)

// connected checks h for the metadata operations, which leave any pending
// result set alone.
func (d *Driver) connected(h *Handle) (native.Conn, error) {
	if h.conn == nil {
		return nil, ErrNotConnected
	}
	h.resetException()
	return h.conn, nil
}

// ListDBs returns the database names matching wild ("" matches all).
func (d *Driver) ListDBs(ctx context.Context, h *Handle, wild string) ([]string, error) {
	d.verbose(h, "ListDBs called", "wild", wild)
	conn, err := d.connected(h)
	if err != nil {
		return nil, err
	}
	rs, st := conn.ListDBs(ctx, wild)
	if report(d.logger, h, st) {
		return nil, nativeError("list_dbs", h, st)
	}
	return d.collect(ctx, h, "list_dbs", rs)
}

// ListTables returns the table names of the active database matching wild.
func (d *Driver) ListTables(ctx context.Context, h *Handle, wild string) ([]string, error) {
	d.verbose(h, "ListTables called", "wild", wild)
	conn, err := d.connected(h)
	if err != nil {
		return nil, err
	}
	rs, st := conn.ListTables(ctx, wild)
	if report(d.logger, h, st) {
		return nil, nativeError("list_tables", h, st)
	}
	return d.collect(ctx, h, "list_tables", rs)
}

// collect flattens every cell of rs in row order and frees it.
func (d *Driver) collect(ctx context.Context, h *Handle, op string, rs native.ResultSet) ([]string, error) {
	if rs == nil {
		return nil, nil
	}
	defer rs.Free()

	var out []string
	for {
		cells, st := rs.FetchRow(ctx)
		if report(d.logger, h, st) {
			return nil, nativeError(op, h, st)
		}
		if cells == nil {
			return out, nil
		}
		for _, c := range cells {
			out = append(out, c.String)
		}
	}
}

// SelectDB switches the handle's active database.
func (d *Driver) SelectDB(ctx context.Context, h *Handle, name string) error {
	d.verbose(h, "SelectDB called", "database", name)
	conn, err := d.connected(h)
	if err != nil {
		return err
	}
	st := conn.SelectDB(ctx, name)
	if report(d.logger, h, st) {
		return nativeError("select_db", h, st)
	}
	return nil
}

// ResultRows returns the number of rows affected by the last statement.
func (d *Driver) ResultRows(ctx context.Context, h *Handle) (uint64, error) {
	d.verbose(h, "ResultRows called")
	conn, err := d.connected(h)
	if err != nil {
		return 0, err
	}
	n, st := conn.AffectedRows(ctx)
	if report(d.logger, h, st) {
		return 0, nativeError("affected_rows", h, st)
	}
	return n, nil
}
