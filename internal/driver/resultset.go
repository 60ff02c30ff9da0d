package driver

import (
	"context"
	"fmt"

	"mysql-dbdriver/internal/native"
)

// Outcome is the successful result of an operation.
type Outcome int

const (
	// OK means a row was fetched.
	OK Outcome = iota
	// EndData means the rows are exhausted and the result set was freed.
	EndData
	// DML means the statement produced no rows.
	DML
	// Rows means rows are waiting to be fetched.
	Rows
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "OK"
	case EndData:
		return "END_DATA"
	case DML:
		return "DML"
	case Rows:
		return "ROWS"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// bindSchema replaces row's slots with one key per field, in field order.
func bindSchema(row *Row, fields []native.Field, qualify bool) {
	row.Truncate(0)
	for _, f := range fields {
		key := f.Name
		if qualify && f.Table != "" {
			key = f.Table + "." + f.Name
		}
		row.Put(key)
	}
}

func (d *Driver) bind(h *Handle) *Row {
	if h.Row == nil {
		h.Row = NewRow()
	}
	bindSchema(h.Row, h.result.Fields(), d.IncludeTableNames())
	return h.Row
}

// BindRow writes the pending result set's column names into h.Row. It may
// be called again without re-running the query.
func (d *Driver) BindRow(h *Handle) (*Row, error) {
	d.verbose(h, "BindRow called")
	if h.result == nil {
		return nil, ErrNoRowsWaiting
	}
	row := d.bind(h)
	d.verbose(h, "Bound row", "columns", row.Size())
	return row, nil
}

// GetRow fetches the next row into row. NULL cells become empty strings.
//
// A row whose size differs from the result set's column count ends the
// query: the result set is freed and ErrColumnMismatch is returned.
func (d *Driver) GetRow(ctx context.Context, h *Handle, row *Row) (Outcome, error) {
	d.verbose(h, "GetRow called")
	if h.result == nil {
		d.logger.Error("No rows waiting to fetch", "driver", d.name, "datasource", h.Datasource)
		return OK, ErrNoRowsWaiting
	}

	numcols := h.result.NumFields()
	if numcols == 0 {
		d.free(h)
		return OK, fmt.Errorf("%w: result set has no columns", ErrInconsistentResult)
	}
	if numcols != row.Size() {
		d.logger.Error("Number of columns in row not equal to number of columns in row fetched",
			"driver", d.name, "row", row.Size(), "fetched", numcols)
		d.free(h)
		return OK, fmt.Errorf("%w: row has %d, result set has %d", ErrColumnMismatch, row.Size(), numcols)
	}

	h.resetException()
	cells, st := h.result.FetchRow(ctx)
	if report(d.logger, h, st) {
		d.free(h)
		return OK, nativeError("fetch_row", h, st)
	}
	if cells == nil {
		d.free(h)
		return EndData, nil
	}

	for i := 0; i < numcols; i++ {
		if i < len(cells) && cells[i].Valid {
			row.PutValue(i, cells[i].String)
		} else {
			row.PutValue(i, "")
		}
	}
	return OK, nil
}

// Flush discards unfetched rows.
func (d *Driver) Flush(h *Handle) {
	d.Cancel(h)
}

// Cancel frees the pending result set, if any, regardless of how many rows
// were fetched. Transaction state is left alone.
func (d *Driver) Cancel(h *Handle) {
	d.verbose(h, "Cancel called", "fetching", h.FetchingRows())
	d.free(h)
}

func (d *Driver) free(h *Handle) {
	if h.result != nil {
		h.result.Free()
		h.result = nil
	}
}
