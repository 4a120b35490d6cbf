package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/sawmill/internal/httpclient"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	maxRetries           = 3
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets the number of records accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.timeout = d }
}

// WithVerbosity selects how each record is rendered. Default: Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithRetryBackoff overrides the delay before retry attempt n.
func WithRetryBackoff(f func(attempt int) time.Duration) Option {
	return func(o *Output) { o.backoff = f }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched records to an HTTP endpoint as a JSON array.
// Records accumulate in an internal buffer and are flushed when batchSize is
// reached or flushInterval elapses. 429 and 5xx responses are retried.
type Output struct {
	client        *httpclient.Client
	headers       map[string]string
	timeout       time.Duration
	backoff       func(int) time.Duration
	verbosity     output.Verbosity
	batchSize     int
	flushInterval time.Duration
	errFunc       func(error)
	mu            sync.Mutex
	pending       []any
	timer         *time.Timer
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		timeout:       defaultTimeout,
		verbosity:     output.Standard,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	copts := []httpclient.Option{
		httpclient.WithTimeout(o.timeout),
		httpclient.WithMaxRetries(maxRetries),
		httpclient.WithHeaders(o.headers),
	}
	if o.backoff != nil {
		copts = append(copts, httpclient.WithBackoff(o.backoff))
	}
	o.client = httpclient.New(url, "", copts...)
	return o
}

// Write appends a record to the batch. When batchSize is reached, the batch
// is flushed immediately. A timer is started on the first record so the
// batch flushes even if batchSize is never reached.
func (o *Output) Write(ctx context.Context, rec model.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatRecord(rec, o.verbosity))

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining records and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	batch := o.pending
	o.pending = nil

	if err := o.client.PostJSON(ctx, "", batch, nil); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
