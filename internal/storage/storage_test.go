package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCheckKey(t *testing.T) {
	tt := map[string]bool{
		"exports/a.csv":     true,
		"a.csv":             true,
		"":                  false,
		"/etc/passwd":       false,
		"../a.csv":          false,
		"exports/../../a":   false,
		"exports//a.csv":    false,
		"exports\\a.csv":    false,
		"..":                false,
		"exports/./a.csv":   false,
		"exports/a..csv.gz": true,
	}
	for key, ok := range tt {
		err := CheckKey(key)
		if ok {
			assert.NoError(t, err, key)
		} else {
			assert.ErrorIs(t, err, ErrInvalidKey, key)
		}
	}
}

func TestLocalProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewLocalProvider(dir, discard)

	w, done := p.StreamToFile(ctx, "exports/job.csv")
	require.NotNil(t, w)
	_, err := io.WriteString(w, "id,name\n1,ada\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, <-done)

	_, ok := <-done
	assert.False(t, ok)

	r, err := p.OpenFile(ctx, "exports/job.csv")
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,ada\n", string(b))

	_, err = os.Stat(filepath.Join(dir, "exports", "job.csv"))
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.GetDownloadURL("exports/job.csv"), "file://"))
}

func TestLocalProviderRejectsEscape(t *testing.T) {
	p := NewLocalProvider(t.TempDir(), discard)

	w, done := p.StreamToFile(context.Background(), "../outside.csv")
	assert.Nil(t, w)
	assert.ErrorIs(t, <-done, ErrInvalidKey)

	_, err := p.OpenFile(context.Background(), "../outside.csv")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestS3Provider(t *testing.T) {
	client := NewS3Client(S3Options{Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", PathStyle: true})
	p := NewS3Provider(client, "exports", discard)
	assert.Equal(t, "s3://exports/job/a.csv", p.GetDownloadURL("job/a.csv"))

	w, done := p.StreamToFile(context.Background(), "/abs")
	assert.Nil(t, w)
	assert.ErrorIs(t, <-done, ErrInvalidKey)
}
