package driver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysql-dbdriver/internal/native"
	"mysql-dbdriver/internal/native/nativetest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDriver(t *testing.T, opts Options) (*Driver, *nativetest.Connector) {
	t.Helper()
	c := nativetest.New()
	opts.Logger = discard
	return New(c, opts), c
}

func openHandle(t *testing.T, d *Driver) *Handle {
	t.Helper()
	h := d.NewHandle("localhost:3306:testdb", "app", "secret")
	require.NoError(t, d.Open(context.Background(), h))
	return h
}

func TestOpen(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	h := openHandle(t, d)

	assert.True(t, h.Connected())
	assert.False(t, h.FetchingRows())
	require.Len(t, c.Conns(), 1)

	conn := c.Conns()[0]
	assert.Equal(t, native.Params{Host: "localhost", Port: 3306, Database: "testdb", User: "app", Password: "secret"}, conn.Params)
	assert.Equal(t, "testdb", conn.Database())
	assert.Equal(t, "MySQL 8.0.36-test", d.DbType(h))

	code, msg := h.Exception()
	assert.Empty(t, code)
	assert.Empty(t, msg)
}

func TestOpenBadDatasource(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	h := d.NewHandle("localhost:3306", "app", "secret")

	err := d.Open(context.Background(), h)
	assert.ErrorIs(t, err, ErrBadDatasource)
	assert.NotErrorIs(t, err, ErrNative)
	assert.False(t, h.Connected())
	assert.Empty(t, c.Calls())
}

func TestOpenConnectFailure(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	c.FailConnect(2003, "Can't connect to MySQL server on 'localhost'")
	h := d.NewHandle("localhost:3306:testdb", "app", "secret")

	err := d.Open(context.Background(), h)
	require.ErrorIs(t, err, ErrNative)

	var ne *NativeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "connect", ne.Op)
	assert.Equal(t, 2003, ne.Code)

	assert.False(t, h.Connected())
	code, msg := h.Exception()
	assert.Equal(t, "2003", code)
	assert.Contains(t, msg, "Can't connect")
}

func TestOpenSelectDBFailure(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	c.FailSelectDB(1049, "Unknown database 'testdb'")
	h := d.NewHandle("localhost:3306:testdb", "app", "secret")

	err := d.Open(context.Background(), h)
	require.ErrorIs(t, err, ErrNative)
	assert.False(t, h.Connected())

	require.Len(t, c.Conns(), 1)
	assert.True(t, c.Conns()[0].Closed())
	assert.Equal(t, 1, c.ThreadEnds())
}

func TestOpenTwice(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	h := openHandle(t, d)

	assert.ErrorIs(t, d.Open(context.Background(), h), ErrAlreadyConnected)
	assert.Len(t, c.Conns(), 1)
}

func TestOpenWrongDriver(t *testing.T) {
	d1, _ := newTestDriver(t, Options{})
	d2, _ := newTestDriver(t, Options{})
	h := d1.NewHandle("localhost:3306:testdb", "", "")

	assert.ErrorIs(t, d2.Open(context.Background(), h), ErrWrongDriver)
}

func TestOpenAdoptsUnboundHandle(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	h := &Handle{Datasource: "localhost:3306:testdb"}

	require.NoError(t, d.Open(context.Background(), h))
	assert.Same(t, d, h.Driver())
}

func TestClose(t *testing.T) {
	d, c := newTestDriver(t, Options{})
	c.OnQuery("SELECT 1").ReturnFields(native.Field{Name: "1"}).ReturnRows(nativetest.Row("1"))
	h := openHandle(t, d)

	_, err := d.Select(context.Background(), h, "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, 1, c.LiveResults())

	d.Close(h)
	assert.False(t, h.Connected())
	assert.False(t, h.FetchingRows())
	assert.Zero(t, c.LiveResults())
	assert.True(t, c.Conns()[0].Closed())
	assert.Equal(t, 1, c.ThreadEnds())
	assert.Equal(t, "MySQL", d.DbType(h))

	// Closing again is harmless.
	d.Close(h)
	assert.Equal(t, 1, c.ThreadEnds())
}

func TestDefaults(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	assert.Equal(t, "MySQL", d.Name())
	assert.Equal(t, DefaultVersion, d.Version())
	assert.False(t, d.IncludeTableNames())

	d2, _ := newTestDriver(t, Options{Name: "Custom", Version: "v9", IncludeTableNames: true})
	assert.Equal(t, "Custom", d2.Name())
	assert.Equal(t, "v9", d2.Version())
	assert.True(t, d2.IncludeTableNames())
}

func TestDbTypeBounded(t *testing.T) {
	d, _ := newTestDriver(t, Options{Name: strings.Repeat("n", 150)})
	h := d.NewHandle("", "", "")
	assert.Len(t, d.DbType(h), 100)
}

func TestReport(t *testing.T) {
	t.Run("Success Is A No-Op", func(t *testing.T) {
		h := &Handle{exceptionCode: "1064", exceptionMsg: "kept"}
		assert.False(t, report(discard, h, native.Status{}))
		code, msg := h.Exception()
		assert.Equal(t, "1064", code)
		assert.Equal(t, "kept", msg)
	})

	t.Run("Oversized Message Is Truncated", func(t *testing.T) {
		h := &Handle{}
		huge := strings.Repeat("x", 4*MaxErrorMessage)
		assert.True(t, report(discard, h, native.Status{Code: 1064, Message: huge}))
		code, msg := h.Exception()
		assert.Equal(t, "1064", code)
		assert.Len(t, msg, MaxErrorMessage)
	})

	t.Run("Multibyte Boundary", func(t *testing.T) {
		h := &Handle{}
		// "é" is two bytes; an odd cut would split one.
		msg := strings.Repeat("x", MaxErrorMessage-1) + "éé"
		report(discard, h, native.Status{Code: 1, Message: msg})
		_, got := h.Exception()
		assert.Equal(t, strings.Repeat("x", MaxErrorMessage-1), got)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("é", 1))
}

func TestSerializeNative(t *testing.T) {
	d, _ := newTestDriver(t, Options{SerializeNative: true})
	h := openHandle(t, d)

	require.NoError(t, d.serial.Acquire(context.Background(), 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.DML(ctx, h, "UPDATE t SET a = 1")
	assert.ErrorIs(t, err, context.Canceled)
	d.serial.Release(1)

	assert.NoError(t, d.DML(context.Background(), h, "UPDATE t SET a = 1"))
}

func TestNativeErrorString(t *testing.T) {
	err := &NativeError{Op: "query", Code: 1064, SQLState: "42000", Message: "syntax"}
	assert.Equal(t, "query failed: (1064) [42000] syntax", err.Error())
	err.SQLState = ""
	assert.Equal(t, "query failed: (1064) syntax", err.Error())
}
