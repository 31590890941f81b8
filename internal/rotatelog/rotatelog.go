// Package rotatelog implements a single-backup rotating log file writer:
// once the current file exceeds a size threshold, it is renamed to a ".1"
// backup (replacing any previous one) and a fresh file is opened in its
// place. Grounded on the original device driver's Logger class, which
// renamed "name.txt" to "name.1.txt" past a 1 MiB threshold from a
// dedicated logging thread; here a mutex serializes writers instead.
package rotatelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultMaxSize matches the original device driver's 1 MiB threshold.
const DefaultMaxSize = 1024 * 1024

// Writer is an io.Writer that rotates the underlying file once it grows
// past MaxSize. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	f       *os.File
	size    int64
}

// New opens (creating if necessary) the log file at path, rotating on
// writes past maxSize bytes. A maxSize of 0 uses DefaultMaxSize.
func New(path string, maxSize int64) (*Writer, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("rotatelog: create log directory: %w", err)
	}
	f, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, maxSize: maxSize, f: f, size: size}, nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("rotatelog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("rotatelog: stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}

// Write implements io.Writer. If the write pushes the file past maxSize,
// the file is rotated before the next call returns.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.f.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("rotatelog: write: %w", err)
	}

	if w.size > w.maxSize {
		if rerr := w.rotate(); rerr != nil {
			return n, rerr
		}
	}
	return n, nil
}

// rotate closes the current file, replaces the ".1" backup with it, and
// opens a fresh file at the original path. Caller must hold w.mu.
func (w *Writer) rotate() error {
	w.f.Close()

	backup := backupPath(w.path)
	os.Remove(backup) // ignore: fine if it never existed
	if err := os.Rename(w.path, backup); err != nil {
		return fmt.Errorf("rotatelog: rotate %s: %w", w.path, err)
	}

	f, size, err := openAppend(w.path)
	if err != nil {
		return err
	}
	w.f = f
	w.size = size
	return nil
}

// backupPath turns "name.ext" into "name.1.ext", matching the original
// driver's naming (and "name" into "name.1" when there is no extension).
func backupPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + ".1" + ext
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
