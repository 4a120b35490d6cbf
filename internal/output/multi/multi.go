package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

// Multi fans records out to several outputs in order. A failing output does
// not stop delivery to the ones after it.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Write delivers rec to every wrapped output and joins their errors.
func (m *Multi) Write(ctx context.Context, rec model.Record) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every wrapped output that buffers.
func (m *Multi) Flush() error {
	var errs []error
	for _, o := range m.outputs {
		if f, ok := o.(output.Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
