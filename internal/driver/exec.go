package driver

import (
	"context"
	"fmt"

	"mysql-dbdriver/internal/native"
)

// ready checks that h can start a statement and disposes of any result set
// the host left behind.
func (d *Driver) ready(h *Handle) (native.Conn, error) {
	if h.conn == nil {
		return nil, ErrNotConnected
	}
	if h.result != nil {
		d.logger.Warn("Discarding unfetched rows", "driver", d.name, "datasource", h.Datasource)
		d.free(h)
	}
	h.resetException()
	return h.conn, nil
}

// DML runs sql without result-set bookkeeping.
func (d *Driver) DML(ctx context.Context, h *Handle, sql string) error {
	d.verbose(h, "DML called")
	conn, err := d.ready(h)
	if err != nil {
		return err
	}

	return d.critical(ctx, func() error {
		st := conn.Exec(ctx, sql)
		if report(d.logger, h, st) {
			return nativeError("query", h, st)
		}
		return nil
	})
}

// Select runs sql, which must produce rows, and binds the column names into
// h.Row. The rows are then fetched with GetRow.
func (d *Driver) Select(ctx context.Context, h *Handle, sql string) (*Row, error) {
	d.verbose(h, "Select called")
	conn, err := d.ready(h)
	if err != nil {
		return nil, err
	}

	var rs native.ResultSet
	err = d.critical(ctx, func() error {
		st := conn.Query(ctx, sql)
		if report(d.logger, h, st) {
			return nativeError("query", h, st)
		}
		rs, st = conn.StoreResult(ctx)
		if report(d.logger, h, st) {
			return nativeError("store_result", h, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rs == nil || rs.NumFields() == 0 {
		d.logger.Error("Query did not return rows", "driver", d.name, "datasource", h.Datasource, "sql", sql)
		if rs != nil {
			rs.Free()
		}
		return nil, ErrNoRows
	}

	h.result = rs
	return d.bind(h), nil
}

// Exec runs sql of unknown shape. It reports Rows when a result set with
// columns is pending (bind it with BindRow) and DML otherwise.
func (d *Driver) Exec(ctx context.Context, h *Handle, sql string) (Outcome, error) {
	d.verbose(h, "Exec called", "sql", sql)
	conn, err := d.ready(h)
	if err != nil {
		return DML, err
	}

	var (
		rs         native.ResultSet
		fieldCount int
	)
	err = d.critical(ctx, func() error {
		st := conn.Query(ctx, sql)
		if report(d.logger, h, st) {
			return nativeError("query", h, st)
		}
		rs, st = conn.StoreResult(ctx)
		if report(d.logger, h, st) {
			return nativeError("store_result", h, st)
		}
		fieldCount = conn.FieldCount()
		return nil
	})
	if err != nil {
		return DML, err
	}

	if rs == nil {
		if fieldCount == 0 {
			d.verbose(h, "Exec finished", "status", DML)
			return DML, nil
		}
		d.logger.Error("Statement has columns but result set is missing", "driver", d.name, "fields", fieldCount)
		return DML, fmt.Errorf("%w: %d columns without a result set", ErrInconsistentResult, fieldCount)
	}

	numcols := rs.NumFields()
	d.verbose(h, "Exec result", "numcols", numcols)
	if numcols == 0 {
		rs.Free()
		return DML, nil
	}

	h.result = rs
	d.verbose(h, "Exec finished", "status", Rows)
	return Rows, nil
}
