package driver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysql-dbdriver/internal/native"
	"mysql-dbdriver/internal/native/nativetest"
)

const usersQuery = "SELECT id, name FROM users"

func scriptUsers(c *nativetest.Connector) {
	c.OnQuery(usersQuery).
		ReturnFields(native.Field{Name: "id", Table: "users"}, native.Field{Name: "name", Table: "users"}).
		ReturnRows(
			nativetest.Row("1", "ada"),
			nativetest.Row("2", nil),
			nativetest.Row("3", "grace"),
		)
}

func TestSelectBindsSchema(t *testing.T) {
	tt := []struct {
		name    string
		qualify bool
		fields  []native.Field
		want    []string
	}{
		{"Plain", false, []native.Field{{Name: "id", Table: "users"}, {Name: "name", Table: "users"}}, []string{"id", "name"}},
		{"Qualified", true, []native.Field{{Name: "id", Table: "users"}, {Name: "name", Table: "users"}}, []string{"users.id", "users.name"}},
		{"Computed Column", true, []native.Field{{Name: "id", Table: "users"}, {Name: "COUNT(*)"}}, []string{"users.id", "COUNT(*)"}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d, c := newTestDriver(t, Options{IncludeTableNames: tc.qualify})
			c.OnQuery("q").ReturnFields(tc.fields...)
			h := openHandle(t, d)

			row, err := d.Select(context.Background(), h, "q")
			require.NoError(t, err)
			assert.Same(t, h.Row, row)
			assert.Equal(t, tc.want, row.Keys())
			assert.True(t, h.FetchingRows())
		})
	}
}

func TestBindSchemaToggle(t *testing.T) {
	fields := []native.Field{{Name: "c", Table: "T"}, {Name: "x"}}
	row := NewRow()

	bindSchema(row, fields, true)
	assert.Equal(t, []string{"T.c", "x"}, row.Keys())

	bindSchema(row, fields, false)
	assert.Equal(t, []string{"c", "x"}, row.Keys())
}

func TestBindRow(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	_, err := d.BindRow(h)
	assert.ErrorIs(t, err, ErrNoRowsWaiting)

	out, err := d.Exec(context.Background(), h, usersQuery)
	require.NoError(t, err)
	require.Equal(t, Rows, out)

	first, err := d.BindRow(h)
	require.NoError(t, err)
	keys := first.Keys()

	d.SetIncludeTableNames(false)
	again, err := d.BindRow(h)
	require.NoError(t, err)
	assert.Equal(t, keys, again.Keys())
	assert.Equal(t, 2, again.Size())

	d.SetIncludeTableNames(true)
	qualified, err := d.BindRow(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.id", "users.name"}, qualified.Keys())
}

func TestGetRowUntilEndData(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	row, err := d.Select(ctx, h, usersQuery)
	require.NoError(t, err)

	var got [][]string
	for {
		out, err := d.GetRow(ctx, h, row)
		require.NoError(t, err)
		if out == EndData {
			break
		}
		assert.Equal(t, OK, out)
		got = append(got, append([]string(nil), row.Values()...))
	}

	assert.Equal(t, [][]string{{"1", "ada"}, {"2", ""}, {"3", "grace"}}, got)
	assert.False(t, h.FetchingRows())
	assert.Zero(t, c.LiveResults())

	_, err = d.GetRow(ctx, h, row)
	assert.ErrorIs(t, err, ErrNoRowsWaiting)
}

func TestGetRowColumnMismatch(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	_, err := d.Select(ctx, h, usersQuery)
	require.NoError(t, err)

	short := NewRow()
	short.Put("id")
	_, err = d.GetRow(ctx, h, short)
	assert.ErrorIs(t, err, ErrColumnMismatch)
	assert.Equal(t, 1, short.Size())

	assert.False(t, h.FetchingRows())
	assert.True(t, h.Connected())
	assert.Zero(t, c.LiveResults())
}

func TestGetRowFetchError(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	c.OnQuery(usersQuery).FailFetchAt(1, 2013, "Lost connection to MySQL server during query")
	h := openHandle(t, d)

	row, err := d.Select(ctx, h, usersQuery)
	require.NoError(t, err)

	out, err := d.GetRow(ctx, h, row)
	require.NoError(t, err)
	assert.Equal(t, OK, out)

	_, err = d.GetRow(ctx, h, row)
	assert.ErrorIs(t, err, ErrNative)
	assert.False(t, h.FetchingRows())
	assert.Zero(t, c.LiveResults())

	code, _ := h.Exception()
	assert.Equal(t, "2013", code)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	t.Run("Idle", func(t *testing.T) {
		d.Cancel(h)
		assert.False(t, h.FetchingRows())
		assert.True(t, h.Connected())
	})

	t.Run("Rows Pending", func(t *testing.T) {
		row, err := d.Select(ctx, h, usersQuery)
		require.NoError(t, err)
		_, err = d.GetRow(ctx, h, row)
		require.NoError(t, err)

		d.Cancel(h)
		assert.False(t, h.FetchingRows())
		assert.Zero(t, c.LiveResults())
	})

	t.Run("Flush", func(t *testing.T) {
		_, err := d.Select(ctx, h, usersQuery)
		require.NoError(t, err)
		d.Flush(h)
		assert.False(t, h.FetchingRows())
		assert.Zero(t, c.LiveResults())
	})
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	s, err := d.Query(ctx, h, usersQuery)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"id", "name"}, s.Columns())
	var names []string
	for s.Next() {
		names = append(names, s.Values()[1])
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"ada", "", "grace"}, names)
	assert.False(t, s.Next())
	assert.Zero(t, c.LiveResults())
}

func TestStreamCloseEarly(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	h := openHandle(t, d)

	s, err := d.Query(ctx, h, usersQuery)
	require.NoError(t, err)
	require.True(t, s.Next())
	require.NoError(t, s.Close())

	assert.False(t, h.FetchingRows())
	assert.Zero(t, c.LiveResults())
}

func TestStreamCloseLeavesLaterResult(t *testing.T) {
	for _, tc := range []struct {
		name    string
		consume bool
	}{{"Exhausted", true}, {"Abandoned", false}} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			d, c := newTestDriver(t, Options{})
			scriptUsers(c)
			h := openHandle(t, d)

			s, err := d.Query(ctx, h, usersQuery)
			require.NoError(t, err)
			if tc.consume {
				for s.Next() {
				}
				require.NoError(t, s.Err())
			}

			row, err := d.Select(ctx, h, usersQuery)
			require.NoError(t, err)
			require.NoError(t, s.Close())

			assert.True(t, h.FetchingRows())
			assert.Equal(t, 1, c.LiveResults())
			out, err := d.GetRow(ctx, h, row)
			require.NoError(t, err)
			assert.Equal(t, OK, out)
			assert.Equal(t, []string{"1", "ada"}, row.Values())
		})
	}
}

// TestLifecycleInvariant drives random operation sequences and checks that a
// handle holds a result set exactly when it reports pending rows, and never
// more than one.
func TestLifecycleInvariant(t *testing.T) {
	ctx := context.Background()
	d, c := newTestDriver(t, Options{})
	scriptUsers(c)
	c.OnQuery("SELECT empty").ReturnFields(native.Field{Name: "a"})
	c.OnQuery("SELECT broken").ReturnError(1064, "syntax error")
	h := openHandle(t, d)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		switch rng.Intn(9) {
		case 0:
			_, _ = d.Select(ctx, h, usersQuery)
		case 1:
			_, _ = d.Exec(ctx, h, usersQuery)
		case 2:
			_, _ = d.Exec(ctx, h, "SELECT empty")
		case 3:
			_, _ = d.Exec(ctx, h, "INSERT INTO users VALUES (4, 'x')")
		case 4:
			_, _ = d.GetRow(ctx, h, h.Row)
		case 5:
			d.Cancel(h)
		case 6:
			_ = d.DML(ctx, h, "SELECT broken")
		case 7:
			_, _ = d.BindRow(h)
		case 8:
			row := NewRow()
			row.Put("only")
			_, _ = d.GetRow(ctx, h, row)
		}

		live := c.LiveResults()
		require.LessOrEqual(t, live, 1, "step %d", i)
		require.Equal(t, h.FetchingRows(), live == 1, "step %d", i)
	}

	d.Close(h)
	assert.Zero(t, c.LiveResults())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "END_DATA", EndData.String())
	assert.Equal(t, "DML", DML.String())
	assert.Equal(t, "ROWS", Rows.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
