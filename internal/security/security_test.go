package security

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	tt := []struct {
		name  string
		query string
		want  error
	}{
		{"Select", "SELECT id, name FROM users", nil},
		{"Select Star", "select*from orders", nil},
		{"Column Named Like Keyword", "SELECT deleted_at, updated_by FROM users", nil},
		{"Not Select", "DELETE FROM users", ErrNotSelect},
		{"Select Prefix Only", "SELECTED FROM x", ErrNotSelect},
		{"Stacked", "SELECT 1; DROP TABLE users", ErrMultipleQueries},
		{"Union", "SELECT id FROM a UNION SELECT id FROM b", ErrForbidden},
		{"Comment Obfuscation", "SELECT 1 FROM t WHERE x IN (SELECT/**/USER('a'))", ErrForbidden},
		{"System Schema", "SELECT * FROM information_schema.tables", ErrSystemTable},
		{"SQLite Catalog", "SELECT name FROM sqlite_master", ErrSystemTable},
		{"Quoted Schema", "SELECT * FROM `mysql`.`user`", ErrSystemTable},
		{"Keyword In Literal", "SELECT id FROM t WHERE note = 'drop; it'", nil},
		{"Escaped Quote", `SELECT 'it''s', 'a\'b' FROM t`, nil},
		{"Quoted Keyword Column", "SELECT `update` FROM t", nil},
		{"Function Not Called", "SELECT user FROM accounts", nil},
		{"Spaced Call", "SELECT version () FROM t", ErrForbidden},
		{"Server Variable", "SELECT @@hostname", ErrForbidden},
		{"Select Into File", "SELECT * FROM t INTO OUTFILE '/tmp/x'", ErrForbidden},
		{"Line Comment Hides Stack", "SELECT 1 -- ; DROP TABLE t", nil},
		{"Leading Comment", "/* report */ SELECT 1", nil},
		{"Empty", "   ", ErrNotSelect},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuery(tc.query)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyHMAC(t *testing.T) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	sig := Sign("s3cret", "POST", "/export", `{"query":"SELECT 1"}`, now)

	assert.NoError(t, VerifyHMAC("s3cret", "POST", "/export", `{"query":"SELECT 1"}`, now, sig))
	assert.ErrorIs(t, VerifyHMAC("s3cret", "POST", "/export", `{"query":"SELECT 2"}`, now, sig), ErrInvalidSignature)
	assert.NoError(t, VerifyHMAC("", "POST", "/export", "", "", ""))

	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	assert.ErrorIs(t, VerifyHMAC("s3cret", "POST", "/export", "", old, Sign("s3cret", "POST", "/export", "", old)), ErrRequestExpired)
	assert.Error(t, VerifyHMAC("s3cret", "POST", "/export", "", "yesterday", sig))
}

func TestAPIKey(t *testing.T) {
	hash, err := HashAPIKey("sk_live_123")
	require.NoError(t, err)

	assert.NoError(t, VerifyAPIKey(hash, "sk_live_123"))
	assert.ErrorIs(t, VerifyAPIKey(hash, "sk_live_124"), ErrInvalidAPIKey)
	assert.ErrorIs(t, VerifyAPIKey(hash, ""), ErrInvalidAPIKey)
	assert.NoError(t, VerifyAPIKey("", ""))
}
