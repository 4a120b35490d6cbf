// Package input defines where raw log documents come from. Each format
// registers itself by name; the CLI picks one from configuration.
package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Source reads raw log documents.
type Source interface {
	// Stream sends documents to out in input order. It returns at end of
	// input, or, when cfg.Follow is set, when ctx is cancelled. It never
	// closes out.
	Stream(ctx context.Context, cfg Config, out chan<- model.RawLog) error
}

// Config holds source settings.
type Config struct {
	Path   string // "-" or "" reads stdin
	Column string // csv column or jsonl field holding the raw text
	Follow bool   // keep reading as the file grows
}

// Constructor creates a new Source instance.
type Constructor func() Source

var registry = map[string]Constructor{}

// Register adds a source constructor under the given format name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the source constructor for the given format name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown input format: %s", name)
	}
	return ctor, nil
}

// Formats returns the sorted names of all registered input formats.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Collect runs src to completion and returns every document it produced.
func Collect(ctx context.Context, src Source, cfg Config) ([]model.RawLog, error) {
	ch := make(chan model.RawLog, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- src.Stream(ctx, cfg, ch)
	}()

	var out []model.RawLog
	for raw := range ch {
		out = append(out, raw)
	}
	return out, <-errc
}

// Open opens path for reading, or stdin for "" and "-".
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return f, nil
}

// Send delivers raw to out unless ctx is done first.
func Send(ctx context.Context, out chan<- model.RawLog, raw model.RawLog) error {
	select {
	case out <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
