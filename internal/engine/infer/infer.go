// Package infer is the boundary to the token-classification model. It packs
// windows into padded batches, calls a Predictor, and scatters per-token
// labels and confidences back onto the windows.
package infer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// ErrContractViolation means the predictor's output does not line up with
// its input. It aborts the whole batch: every window in it would be misaligned.
var ErrContractViolation = errors.New("infer: prediction contract violation")

// Batch is a padded input batch. Slices are flat [Size * SeqLen].
type Batch struct {
	InputIDs      []int64
	AttentionMask []int64
	Size          int64
	SeqLen        int64
}

// Output holds one label id and confidence per batch position, flat
// [Size * SeqLen] in the same order as the input.
type Output struct {
	Labels      []int
	Confidences []float32
}

// Predictor runs the token classifier on one batch.
type Predictor interface {
	Predict(ctx context.Context, b Batch) (Output, error)
	Close() error
}

const defaultBatchSize = 64

// Option configures an Adapter.
type Option func(*Adapter)

// WithBatchSize sets how many windows go into one predictor call. Default: 64.
func WithBatchSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithPadID sets the token id used for padding positions. Default: 0.
func WithPadID(id int64) Option {
	return func(a *Adapter) { a.padID = id }
}

// WithTimeout bounds each predictor call. Zero (default) means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// Adapter feeds windows through a Predictor in batches.
type Adapter struct {
	predictor Predictor
	batchSize int
	padID     int64
	timeout   time.Duration
}

// NewAdapter wraps p.
func NewAdapter(p Predictor, opts ...Option) *Adapter {
	a := &Adapter{predictor: p, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run predicts every window and sets its Labels and Confidences. Windows may
// come from many documents; each keeps its own provenance. Any predictor
// error or contract violation aborts the run.
func (a *Adapter) Run(ctx context.Context, windows []model.Window) error {
	for start := 0; start < len(windows); start += a.batchSize {
		chunk := windows[start:min(start+a.batchSize, len(windows))]
		b := pack(chunk, a.padID)
		if b.SeqLen == 0 {
			for i := range chunk {
				chunk[i].Labels, chunk[i].Confidences = []int{}, []float32{}
			}
			continue
		}

		out, err := a.predict(ctx, b)
		if err != nil {
			return fmt.Errorf("infer: windows [%d:%d]: %w", start, start+len(chunk), err)
		}
		if err := check(b, out); err != nil {
			return fmt.Errorf("windows [%d:%d]: %w", start, start+len(chunk), err)
		}
		scatter(chunk, b.SeqLen, out)

		slog.Debug("inference batch complete", "windows", len(chunk), "seq_len", b.SeqLen)
	}
	return nil
}

func (a *Adapter) predict(ctx context.Context, b Batch) (Output, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	return a.predictor.Predict(ctx, b)
}

// pack lays windows out row by row, padded to the longest window.
func pack(ws []model.Window, padID int64) Batch {
	seqLen := 0
	for _, w := range ws {
		seqLen = max(seqLen, w.Len())
	}
	size := len(ws)
	b := Batch{
		InputIDs:      make([]int64, size*seqLen),
		AttentionMask: make([]int64, size*seqLen),
		Size:          int64(size),
		SeqLen:        int64(seqLen),
	}
	for i, w := range ws {
		row := i * seqLen
		copy(b.InputIDs[row:], w.TokenIDs)
		for j := w.Len(); j < seqLen; j++ {
			b.InputIDs[row+j] = padID
		}
		for j := 0; j < w.Len(); j++ {
			b.AttentionMask[row+j] = 1
		}
	}
	return b
}

// check enforces the adapter contract: exactly one label and confidence per
// input position, and every real position's confidence a probability.
func check(b Batch, out Output) error {
	want := int(b.Size * b.SeqLen)
	if len(out.Labels) != want || len(out.Confidences) != want {
		return fmt.Errorf("%w: %d positions in, %d labels and %d confidences out",
			ErrContractViolation, want, len(out.Labels), len(out.Confidences))
	}
	for i, c := range out.Confidences {
		if b.AttentionMask[i] == 0 {
			continue
		}
		if math.IsNaN(float64(c)) || c < 0 || c > 1 {
			return fmt.Errorf("%w: confidence %v at position %d outside [0,1]", ErrContractViolation, c, i)
		}
	}
	return nil
}

func scatter(ws []model.Window, seqLen int64, out Output) {
	for i := range ws {
		row := i * int(seqLen)
		n := ws[i].Len()
		ws[i].Labels = append([]int(nil), out.Labels[row:row+n]...)
		ws[i].Confidences = append([]float32(nil), out.Confidences[row:row+n]...)
	}
}
