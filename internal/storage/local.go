package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalProvider stores objects as files under a base directory.
type LocalProvider struct {
	basePath string
	logger   *slog.Logger
}

func NewLocalProvider(basePath string, logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logger.Error("Failed to ensure local storage directory exists", "path", basePath, "error", err)
	}
	return &LocalProvider{
		basePath: basePath,
		logger:   logger,
	}
}

func (p *LocalProvider) path(key string) (string, error) {
	if err := CheckKey(key); err != nil {
		return "", fmt.Errorf("%w: %q", err, key)
	}
	return filepath.Join(p.basePath, filepath.FromSlash(key)), nil
}

func (p *LocalProvider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	fullPath, err := p.path(key)
	if err != nil {
		return nil, failed(err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, failed(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, failed(fmt.Errorf("failed to create file %s: %w", fullPath, err))
	}

	w := &localWriter{
		f:       f,
		errChan: make(chan error, 1),
		path:    fullPath,
		logger:  p.logger,
	}
	return w, w.errChan
}

func (p *LocalProvider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := p.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (p *LocalProvider) GetDownloadURL(key string) string {
	abs, _ := filepath.Abs(filepath.Join(p.basePath, filepath.FromSlash(key)))
	return "file://" + filepath.ToSlash(abs)
}

// localWriter reports the result of closing the file on errChan.
type localWriter struct {
	f       *os.File
	errChan chan error
	path    string
	logger  *slog.Logger
	closed  bool
}

func (w *localWriter) Write(p []byte) (n int, err error) {
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.f.Close()
	if err == nil {
		w.logger.Info("Local file write completed", "path", w.path)
	}
	w.errChan <- err
	close(w.errChan)
	return err
}
