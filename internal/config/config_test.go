package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysql-dbdriver/internal/native"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaults(t *testing.T) {
	unsetEnv(t, "DB_DIALECT", "DB_INCLUDE_TABLENAMES", "DB_BUFFER_RESULTS", "DB_SERIALIZE_NATIVE",
		"DB_CONNECT_TIMEOUT", "ALLOWED_ORIGINS", "WORKER_COUNT")
	cfg := FromEnv()

	assert.Equal(t, "mysql", cfg.DBDialect)
	assert.True(t, cfg.DBIncludeTableNames)
	assert.True(t, cfg.DBBufferResults)
	assert.False(t, cfg.DBSerializeNative)
	assert.Equal(t, 10*time.Second, cfg.DBConnectTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.WorkerCount)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("DB_DATASOURCE", "x:0::memory:")
	t.Setenv("DB_SERIALIZE_NATIVE", "on")
	t.Setenv("DB_INCLUDE_TABLENAMES", "off")
	t.Setenv("DB_BUFFER_RESULTS", "false")
	t.Setenv("DB_CONNECT_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("MAX_DB_CONCURRENCY", "2")

	cfg := FromEnv()
	assert.Equal(t, "x:0::memory:", cfg.DBDatasource)
	assert.True(t, cfg.DBSerializeNative)
	assert.False(t, cfg.DBIncludeTableNames)
	assert.False(t, cfg.DBBufferResults)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, int64(2), cfg.MaxDBConcurrency)

	opts := cfg.DriverOptions()
	assert.True(t, opts.SerializeNative)
	assert.False(t, opts.IncludeTableNames)
	assert.Equal(t, 3*time.Second, opts.ConnectTimeout)

	c, err := cfg.Connector()
	require.NoError(t, err)
	assert.Equal(t, native.SQLite.Name, c.Name())
}

func TestUnknownDialect(t *testing.T) {
	t.Setenv("DB_DIALECT", "oracle")

	_, err := FromEnv().Connector()
	assert.ErrorIs(t, err, native.ErrUnknownDialect)
}
