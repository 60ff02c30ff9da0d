package driver

import (
	"context"

	"mysql-dbdriver/internal/native"
)

// Stream iterates over the rows of one Select on a handle.
type Stream struct {
	ctx  context.Context
	d    *Driver
	h    *Handle
	row  *Row
	err  error
	done bool
	// rs is the result set the stream reads; the handle may move on to
	// another one after the stream ends.
	rs   native.ResultSet
}

// Query runs a Select on h and returns a Stream over its rows. Close the
// stream to release rows that were not consumed.
func (d *Driver) Query(ctx context.Context, h *Handle, sql string) (*Stream, error) {
	row, err := d.Select(ctx, h, sql)
	if err != nil {
		return nil, err
	}
	return &Stream{ctx: ctx, d: d, h: h, row: row, rs: h.result}, nil
}

func (s *Stream) Columns() []string {
	return s.row.Keys()
}

func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		s.release()
		return false
	}
	out, err := s.d.GetRow(s.ctx, s.h, s.row)
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if out == EndData {
		s.done = true
		return false
	}
	return true
}

func (s *Stream) Values() []string {
	return s.row.Values()
}

func (s *Stream) Err() error {
	return s.err
}

// Close releases the rows that were not consumed. It leaves the handle
// alone once it holds a different result set.
func (s *Stream) Close() error {
	s.release()
	return nil
}

func (s *Stream) release() {
	s.done = true
	if s.rs != nil && s.h.result == s.rs {
		s.d.Cancel(s.h)
	}
	s.rs = nil
}
