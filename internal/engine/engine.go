// Package engine runs the reconstruction flow for a batch of raw log lines:
// tokenize → window → infer → aggregate → decode → normalize.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/crimson-sun/sawmill/internal/engine/aggregate"
	"github.com/crimson-sun/sawmill/internal/engine/decoder"
	"github.com/crimson-sun/sawmill/internal/engine/infer"
	"github.com/crimson-sun/sawmill/internal/engine/normalize"
	"github.com/crimson-sun/sawmill/internal/engine/tokenizer"
	"github.com/crimson-sun/sawmill/internal/engine/window"
	"github.com/crimson-sun/sawmill/internal/model"
)

// DefaultWindow matches the classifier's 256-token input with 64-token stride.
var DefaultWindow = window.Config{MaxLen: 256, Stride: 64}

// Option configures an Engine.
type Option func(*Engine)

// WithWindow sets the window geometry. Default: DefaultWindow.
func WithWindow(cfg window.Config) Option {
	return func(e *Engine) { e.window = cfg }
}

// WithWorkers bounds per-document concurrency. Zero or less means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBatchSize sets how many windows share one predictor call.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.inferOpts = append(e.inferOpts, infer.WithBatchSize(n)) }
}

// WithInferTimeout bounds every predictor call.
func WithInferTimeout(d time.Duration) Option {
	return func(e *Engine) { e.inferOpts = append(e.inferOpts, infer.WithTimeout(d)) }
}

// Engine is safe for concurrent use once built.
type Engine struct {
	tokenizer  *tokenizer.Tokenizer
	predictor  infer.Predictor
	adapter    *infer.Adapter
	decoder    *decoder.Decoder
	normalizer *normalize.Normalizer

	window    window.Config
	workers   int
	inferOpts []infer.Option
}

// New creates an Engine with the provided components. The engine owns the
// predictor and closes it in Close.
func New(tok *tokenizer.Tokenizer, pred infer.Predictor, dec *decoder.Decoder, norm *normalize.Normalizer, opts ...Option) (*Engine, error) {
	e := &Engine{
		tokenizer:  tok,
		predictor:  pred,
		decoder:    dec,
		normalizer: norm,
		window:     DefaultWindow,
		workers:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.window.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.adapter = infer.NewAdapter(pred, append([]infer.Option{infer.WithPadID(tok.Vocab().PadID())}, e.inferOpts...)...)
	return e, nil
}

// Process parses a single raw log. The returned error is either a batch-level
// inference failure or the document's own failure.
func (e *Engine) Process(ctx context.Context, raw model.RawLog) (model.Record, error) {
	recs, err := e.ProcessBatch(ctx, []model.RawLog{raw})
	if err != nil {
		return model.Record{}, err
	}
	return recs[0], recs[0].Err
}

// ProcessBatch parses raws into one record each, in input order, with Doc set
// to the input position. Tokenization, aggregation, and decoding failures are
// per document and land on Record.Err. Only an inference failure, which
// leaves every window of the batch unusable, is returned as an error.
func (e *Engine) ProcessBatch(ctx context.Context, raws []model.RawLog) ([]model.Record, error) {
	log := slog.With("batch_id", uuid.NewString())
	start := time.Now()

	records := make([]model.Record, len(raws))
	for i, raw := range raws {
		records[i] = model.NewRecord(i)
		records[i].Timestamp = raw.Timestamp
		records[i].Source = raw.Source
		records[i].Raw = raw.Raw
	}

	perDoc, err := e.split(ctx, raws, records)
	if err != nil {
		return nil, err
	}

	var all []model.Window
	for _, ws := range perDoc {
		all = append(all, ws...)
	}
	if err := e.adapter.Run(ctx, all); err != nil {
		log.Error("inference failed", "documents", len(raws), "windows", len(all), "error", err)
		return nil, fmt.Errorf("engine: %w", err)
	}

	// Run filled the copies in all; re-slice them per document.
	off := 0
	for i, ws := range perDoc {
		perDoc[i] = all[off : off+len(ws)]
		off += len(ws)
	}

	if err := e.decodeAll(ctx, perDoc, records); err != nil {
		return nil, err
	}

	failed := 0
	for _, rec := range records {
		if rec.Err != nil {
			failed++
			log.Warn("document failed", "doc", rec.Doc, "error", rec.Err)
		}
	}
	log.Debug("batch processed",
		"documents", len(raws),
		"windows", len(all),
		"failed", failed,
		"duration", time.Since(start),
	)
	return records, nil
}

// split tokenizes and windows every document concurrently.
func (e *Engine) split(ctx context.Context, raws []model.RawLog, records []model.Record) ([][]model.Window, error) {
	perDoc := make([][]model.Window, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ids, err := e.tokenizer.Tokenize(raw.Raw)
			if err != nil {
				records[i].Err = fmt.Errorf("engine: document %d: %w", i, err)
				return nil
			}
			ws, err := window.Split(i, ids, e.window)
			if err != nil {
				records[i].Err = err
				return nil
			}
			perDoc[i] = ws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return perDoc, nil
}

// decodeAll aggregates, decodes, and normalizes each document on a bounded
// worker pool. Documents that already failed are skipped.
func (e *Engine) decodeAll(ctx context.Context, perDoc [][]model.Window, records []model.Record) error {
	sem := semaphore.NewWeighted(int64(e.workers))
	var wg sync.WaitGroup
	for i := range perDoc {
		if records[i].Err != nil {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return fmt.Errorf("engine: %w", err)
		}
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			e.decodeOne(i, perDoc[i], &records[i])
		}()
	}
	wg.Wait()
	return nil
}

func (e *Engine) decodeOne(doc int, ws []model.Window, rec *model.Record) {
	pred, err := aggregate.Document(doc, ws)
	if err != nil {
		rec.Err = err
		return
	}
	decoded, err := e.decoder.Decode(pred)
	if err != nil {
		rec.Err = err
		return
	}
	e.normalizer.Apply(&decoded)
	rec.Fields = decoded.Fields
	rec.Confidence = decoded.Confidence
}

// Close releases the predictor.
func (e *Engine) Close() error {
	return e.predictor.Close()
}
