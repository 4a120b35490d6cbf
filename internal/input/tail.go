package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rotationWait bounds how long Tail waits for a rotated file to reappear.
var rotationWait = 10 * time.Second

// Tail calls emit for every complete line of path, first for the existing
// content and then for each line appended later. It follows truncation and
// rotation (remove or rename followed by re-creation). It returns nil when
// ctx is cancelled.
func Tail(ctx context.Context, path string, emit func(string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("input: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return fmt.Errorf("input: watch %s: %w", path, err)
	}

	t := &tailer{path: path, emit: emit}
	if err := t.read(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("input: watcher closed unexpectedly")
			}
			switch {
			case ev.Has(fsnotify.Write):
				if err := t.read(); err != nil {
					return err
				}
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				if err := t.reopen(ctx, w); err != nil {
					return err
				}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("input: watcher error channel closed")
			}
			return fmt.Errorf("input: watcher error: %w", err)
		}
	}
}

type tailer struct {
	path    string
	offset  int64
	partial string
	emit    func(string) error
}

// read emits every complete line written since the last read.
func (t *tailer) read() error {
	if size := statSize(t.path); size >= 0 && size < t.offset {
		slog.Info("input file truncated, reading from start", "path", t.path)
		t.offset, t.partial = 0, ""
	}

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("input: seek %s: %w", t.path, err)
	}

	n, rest, err := readLines(f, t.partial, t.emit)
	t.offset += n
	t.partial = rest
	return err
}

// reopen waits for a rotated file to reappear and starts it from the top.
func (t *tailer) reopen(ctx context.Context, w *fsnotify.Watcher) error {
	timeout := time.After(rotationWait)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("input: timeout waiting for rotated file %s to reappear", t.path)
		case <-ticker.C:
			if statSize(t.path) < 0 {
				continue
			}
			if err := w.Add(t.path); err != nil {
				return fmt.Errorf("input: watch rotated file: %w", err)
			}
			slog.Info("input file rotated, following new file", "path", t.path)
			t.offset, t.partial = 0, ""
			return t.read()
		}
	}
}
