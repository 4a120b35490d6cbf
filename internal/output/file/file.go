// Package file appends records to an NDJSON file.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

const (
	defaultBufSize = 64 * 1024
	keepRotated    = 10
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize rotates the file once a write would take it past n bytes.
// 0 (default) never rotates.
func WithMaxSize(n int64) Option {
	return func(o *Output) { o.maxSize = n }
}

// WithBufSize sets the write buffer size. Default: 64KB.
func WithBufSize(n int) Option {
	return func(o *Output) { o.bufSize = n }
}

// Output appends one JSON record per line. Rotated files are kept as
// path.1 (newest) through path.10 (oldest).
type Output struct {
	path      string
	verbosity output.Verbosity
	maxSize   int64
	bufSize   int

	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	size int64 // bytes in the current file, buffered ones included
}

// New opens path for appending, creating it if needed.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{path: path, verbosity: verbosity, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Output) Write(_ context.Context, rec model.Record) error {
	line, err := json.Marshal(output.FormatRecord(rec, o.verbosity))
	if err != nil {
		return fmt.Errorf("file output: encode doc %d: %w", rec.Doc, err)
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.needsRotation(len(line)) {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate %s: %w", o.path, err)
		}
	}
	n, err := o.w.Write(line)
	o.size += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Flush pushes buffered records to the file.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("file output: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	flushErr := o.w.Flush()
	closeErr := o.f.Close()
	if flushErr != nil {
		return fmt.Errorf("file output: flush: %w", flushErr)
	}
	return closeErr
}

// needsRotation reports whether a line of n bytes would overflow a non-empty
// file. A single oversized line still goes to a fresh file.
func (o *Output) needsRotation(n int) bool {
	return o.maxSize > 0 && o.size > 0 && o.size+int64(n) > o.maxSize
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f, o.w, o.size = f, bufio.NewWriterSize(f, o.bufSize), info.Size()
	return nil
}

func (o *Output) rotated(i int) string {
	return fmt.Sprintf("%s.%d", o.path, i)
}

// rotate shifts path.i to path.i+1, dropping the oldest, moves the live file
// to path.1, and reopens path empty.
func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}
	for i := keepRotated - 1; i >= 1; i-- {
		if err := os.Rename(o.rotated(i), o.rotated(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(o.path, o.rotated(1)); err != nil {
		return err
	}
	return o.open()
}
