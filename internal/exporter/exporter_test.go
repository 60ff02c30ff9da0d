package exporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/native"
	"mysql-dbdriver/internal/native/nativetest"
)

// sliceRows is an in-memory driver.RowStreamer.
type sliceRows struct {
	columns []string
	rows    [][]string
	pos     int
	err     error
	closed  bool
}

func (r *sliceRows) Columns() []string { return r.columns }
func (r *sliceRows) Values() []string  { return r.rows[r.pos-1] }
func (r *sliceRows) Err() error        { return r.err }

func (r *sliceRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Close() error {
	r.closed = true
	return nil
}

func sample() *sliceRows {
	return &sliceRows{
		columns: []string{"id", "name", "balance"},
		rows: [][]string{
			{"1", "ada", "-12.5"},
			{"2", "=HYPERLINK(\"x\")", ""},
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := sample()
	enc := NewCSVEncoder(&buf)

	res, err := Export(context.Background(), rows, enc)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	assert.Equal(t, int64(2), res.RowsProcessed)
	assert.True(t, rows.closed)
	assert.Equal(t, "id,name,balance\n1,ada,-12.5\n2,\"'=HYPERLINK(\"\"x\"\")\",\n", buf.String())
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)

	_, err := Export(context.Background(), sample(), enc)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":"1","name":"ada","balance":"-12.5"}`, lines[0])
	assert.Equal(t, `{"id":"2","name":"=HYPERLINK(\"x\")","balance":""}`, lines[1])
}

func TestJSONExtraColumns(t *testing.T) {
	var buf bytes.Buffer
	enc := NewJSONEncoder(&buf)
	require.NoError(t, enc.WriteHeader([]string{"a"}))
	require.NoError(t, enc.WriteRow([]string{"1", "2"}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "{\"a\":\"1\",\"column_1\":\"2\"}\n", buf.String())
}

func TestExportExcel(t *testing.T) {
	var buf bytes.Buffer
	enc := NewExcelEncoder(&buf)

	_, err := Export(context.Background(), sample(), enc)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"id", "name", "balance"}, got[0])
	assert.Equal(t, "ada", got[1][1])
	assert.Equal(t, "'=HYPERLINK(\"x\")", got[2][1])
}

func TestExportPDF(t *testing.T) {
	var buf bytes.Buffer
	enc := NewPDFEncoder(&buf)

	_, err := Export(context.Background(), sample(), enc)
	require.NoError(t, err)
	assert.Zero(t, buf.Len())

	require.NoError(t, enc.Close())
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	n := buf.Len()
	require.NoError(t, enc.Close())
	assert.Equal(t, n, buf.Len())
}

func TestExportRowsError(t *testing.T) {
	rows := sample()
	rows.err = errors.New("connection reset")

	_, err := Export(context.Background(), rows, NewCSVEncoder(io.Discard))
	assert.ErrorContains(t, err, "connection reset")
	assert.True(t, rows.closed)
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows := sample()

	_, err := Export(ctx, rows, NewCSVEncoder(io.Discard))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rows.closed)
}

func TestExportFromHandle(t *testing.T) {
	ctx := context.Background()
	c := nativetest.New()
	c.OnQuery("SELECT id, email FROM users").
		ReturnFields(native.Field{Name: "id"}, native.Field{Name: "email"}).
		ReturnRows(nativetest.Row("1", "a@example.com"), nativetest.Row("2", nil))

	d := driver.New(c, driver.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	h := d.NewHandle("db:3306:app", "app", "secret")
	require.NoError(t, d.Open(ctx, h))

	s, err := d.Query(ctx, h, "SELECT id, email FROM users")
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := NewCSVEncoder(&buf)
	res, err := Export(ctx, s, enc)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	assert.Equal(t, int64(2), res.RowsProcessed)
	assert.Equal(t, "id,email\n1,a@example.com\n2,\n", buf.String())
	assert.False(t, h.FetchingRows())
	assert.Zero(t, c.LiveResults())
}

func TestSanitize(t *testing.T) {
	tt := map[string]string{
		"":        "",
		"plain":   "plain",
		"-5":      "-5",
		"+1.5e3":  "+1.5e3",
		"-cmd":    "'-cmd",
		"@SUM(1)": "'@SUM(1)",
		"=1+1":    "'=1+1",
	}
	for in, want := range tt {
		assert.Equal(t, want, sanitize(in), in)
	}
}

func TestNewEncoder(t *testing.T) {
	assert.IsType(t, &JSONEncoder{}, NewEncoder("json", io.Discard))
	assert.IsType(t, &ExcelEncoder{}, NewEncoder("excel", io.Discard))
	assert.IsType(t, &PDFEncoder{}, NewEncoder("pdf", io.Discard))
	assert.IsType(t, &CSVEncoder{}, NewEncoder("", io.Discard))
	assert.Equal(t, "xlsx", Extension("excel"))
	assert.Equal(t, "jsonl", Extension("json"))
	assert.Equal(t, "tsv", Extension("tsv"))
	assert.Equal(t, "csv", Extension("parquet"))
}

func TestTSVEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewTSVEncoder(&buf)
	require.NoError(t, enc.WriteHeader([]string{"id", "note"}))
	require.NoError(t, enc.WriteRow([]string{"1", "a,b"}))
	require.NoError(t, enc.WriteRow([]string{"2", "tab\there"}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "id\tnote\n1\ta,b\n2\t\"tab\there\"\n", buf.String())
}
