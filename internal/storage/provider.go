// Package storage holds the destinations exported result sets are written to.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for object keys that are empty, absolute, or
// escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Provider defines the interface for storing exported data.
type Provider interface {
	// StreamToFile returns a WriteCloser; data written to it is streamed to
	// key. The channel receives exactly one error (or nil) once the object
	// is complete, which is after the writer is closed.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens the stored object for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// GetDownloadURL returns a URL for the stored object.
	GetDownloadURL(key string) string
}

// CheckKey validates a relative, slash-separated object key.
func CheckKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidKey
	}
	return nil
}

// failed returns a channel carrying err alone.
func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
