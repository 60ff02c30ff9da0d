package dsn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tt := []struct {
		name string
		in   string
		want Datasource
	}{
		{"Typical", "localhost:3306:testdb", Datasource{Host: "localhost", Port: 3306, Database: "testdb"}},
		{"Empty Host", ":3306:testdb", Datasource{Port: 3306, Database: "testdb"}},
		{"Empty Database", "db.internal:3307:", Datasource{Host: "db.internal", Port: 3307}},
		{"All Empty", "::", Datasource{}},
		{"Bad Port", "localhost:abc:testdb", Datasource{Host: "localhost", Database: "testdb"}},
		{"Port Above 16 Bits", "localhost:70000:testdb", Datasource{Host: "localhost", Port: 70000, Database: "testdb"}},
		{"Port Overflow", "localhost:4294967296:testdb", Datasource{Host: "localhost", Database: "testdb"}},
		{"Leading Zero", "localhost:03306:testdb", Datasource{Host: "localhost", Port: 3306, Database: "testdb"}},
		{"Colons In Database", "x:0::memory:", Datasource{Host: "x", Database: ":memory:"}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "localhost", "localhost:3306", "testdb"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{
		"localhost:3306:testdb",
		"10.0.0.7:5432:orders",
		":0:",
		"h:65535:a:b",
		"db.example:70000:app",
		"h:4294967295:db",
	} {
		t.Run(in, func(t *testing.T) {
			d, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, d.String())
		})
	}
}

func TestCanonicalPort(t *testing.T) {
	for in, want := range map[string]string{
		"h:03306:app":       "h:3306:app",
		"h: 3306 :app":      "h:3306:app",
		"h:-1:app":          "h:0:app",
		"h:99999999999:app": "h:0:app",
	} {
		d, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, d.String(), in)
	}
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "localhost:3306", Datasource{Host: "localhost", Port: 3306}.Addr())
	assert.Equal(t, "localhost", Datasource{Host: "localhost"}.Addr())
}
