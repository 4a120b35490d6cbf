package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/sawmill/internal/input"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

// Processor turns a batch of raw logs into one record each, in order.
type Processor interface {
	ProcessBatch(ctx context.Context, raws []model.RawLog) ([]model.Record, error)
}

const (
	defaultBatchSize     = 256
	defaultFlushInterval = 2 * time.Second
)

// Pipeline connects a source, processor, and output.
type Pipeline struct {
	source    input.Source
	processor Processor
	output    output.Output

	batchSize     int
	flushInterval time.Duration

	nextDoc       int
	failedDocs    atomic.Int64
	failedBatches atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many documents go to the processor at once. Default: 256.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how long Stream waits for a partial batch to fill
// before processing it anyway. Default: 2s.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// New creates a Pipeline from the given components.
func New(src input.Source, proc Processor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:        src,
		processor:     proc,
		output:        out,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads the whole input and processes it in batches of batchSize. A batch
// whose processing fails aborts the run.
func (p *Pipeline) Run(ctx context.Context, cfg input.Config) error {
	return p.consume(ctx, cfg, func(ctx context.Context, ch <-chan model.RawLog) error {
		batch := make([]model.RawLog, 0, p.batchSize)
		for raw := range ch {
			batch = append(batch, raw)
			if len(batch) == p.batchSize {
				if err := p.process(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.process(ctx, batch)
	})
}

// Stream processes documents as they arrive, flushing a batch when it is full
// or when flushInterval has passed since its first document. A failed batch
// is logged, its documents are written with the error set, and streaming
// continues. Blocks until the source ends or ctx is cancelled.
func (p *Pipeline) Stream(ctx context.Context, cfg input.Config) error {
	return p.consume(ctx, cfg, func(ctx context.Context, ch <-chan model.RawLog) error {
		buf := newStreamBuffer(p.batchSize, p.flushInterval)
		flush := func(ctx context.Context) error {
			batch := buf.take()
			if len(batch) == 0 {
				return nil
			}
			err := p.process(ctx, batch)
			var perr *processError
			if errors.As(err, &perr) {
				return p.writeFailed(ctx, batch, perr.err)
			}
			return err
		}

		for {
			select {
			case <-ctx.Done():
				// Drain what was already read before shutting down.
				return flush(context.WithoutCancel(ctx))
			case raw, ok := <-ch:
				if !ok {
					return flush(ctx)
				}
				if buf.add(raw) {
					if err := flush(ctx); err != nil {
						return err
					}
				}
			case <-buf.flushCh():
				if err := flush(ctx); err != nil {
					return err
				}
			}
		}
	})
}

// consume runs the source and handle concurrently, handing documents over a
// channel.
func (p *Pipeline) consume(ctx context.Context, cfg input.Config, handle func(context.Context, <-chan model.RawLog) error) error {
	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan model.RawLog, p.batchSize)

	g.Go(func() error {
		defer close(ch)
		if err := p.source.Stream(gctx, cfg, ch); err != nil {
			return fmt.Errorf("pipeline source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return handle(gctx, ch)
	})

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// processError marks a processor failure, as opposed to an output failure.
type processError struct{ err error }

func (e *processError) Error() string { return fmt.Sprintf("pipeline process: %v", e.err) }
func (e *processError) Unwrap() error { return e.err }

// process runs one batch and writes its records. Document ids are rebased so
// they keep increasing across batches.
func (p *Pipeline) process(ctx context.Context, batch []model.RawLog) error {
	if len(batch) == 0 {
		return nil
	}
	base := p.nextDoc
	p.nextDoc += len(batch)

	recs, err := p.processor.ProcessBatch(ctx, batch)
	if err != nil {
		p.failedBatches.Add(1)
		slog.Error("batch failed", "first_doc", base, "documents", len(batch), "error", err)
		return &processError{err: err}
	}
	for i := range recs {
		recs[i].Doc = base + i
		if recs[i].Err != nil {
			p.failedDocs.Add(1)
		}
		if err := p.output.Write(ctx, recs[i]); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return p.flush()
}

// writeFailed emits one error record per document of a failed batch so
// downstream consumers see every input position.
func (p *Pipeline) writeFailed(ctx context.Context, batch []model.RawLog, cause error) error {
	base := p.nextDoc - len(batch)
	for i, raw := range batch {
		rec := model.NewRecord(base + i)
		rec.Timestamp, rec.Source, rec.Raw = raw.Timestamp, raw.Source, raw.Raw
		rec.Err = cause
		p.failedDocs.Add(1)
		if err := p.output.Write(ctx, rec); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return p.flush()
}

func (p *Pipeline) flush() error {
	if f, ok := p.output.(output.Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return nil
}

// Close shuts down the output and reports failure counts.
func (p *Pipeline) Close() error {
	if n, b := p.failedDocs.Load(), p.failedBatches.Load(); n > 0 || b > 0 {
		slog.Warn("pipeline finished with failures", "failed_documents", n, "failed_batches", b)
	}
	return p.output.Close()
}
