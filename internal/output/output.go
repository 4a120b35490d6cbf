// Package output writes field records to their destination as JSON.
package output

import (
	"context"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Output defines the interface for record destinations.
type Output interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}

// Flusher is implemented by outputs that buffer writes. The pipeline flushes
// after every batch so followers see records without waiting for Close.
type Flusher interface {
	Flush() error
}
