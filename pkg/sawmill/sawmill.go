package sawmill

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/engine/infer"
	"github.com/crimson-sun/sawmill/internal/engine/tokenizer"
	"github.com/crimson-sun/sawmill/internal/model"
)

// Errors a caller may want to match with errors.Is.
var (
	// ErrInvalidEncoding is set on a Record whose text is not valid UTF-8.
	ErrInvalidEncoding = tokenizer.ErrInvalidEncoding
	// ErrContractViolation means the model returned output that does not
	// line up with its input. The whole batch fails.
	ErrContractViolation = infer.ErrContractViolation
)

// Sawmill is a log field extractor. Safe for concurrent use.
type Sawmill struct {
	engine *engine.Engine
}

// New loads the model files and starts the inference session. This is an
// expensive operation: create once, reuse across requests.
func New(opts ...Option) (*Sawmill, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	eng, err := engine.OpenWithPredictor(o.settings, o.predictor)
	if err != nil {
		return nil, fmt.Errorf("sawmill: %w", err)
	}
	return &Sawmill{engine: eng}, nil
}

// Parse extracts fields from a single log line.
func (s *Sawmill) Parse(text string) (Record, error) {
	return s.ParseLog(Log{Text: text})
}

// ParseBatch extracts fields from several lines in one batched inference
// run. The error is non-nil only when the whole batch failed; a line that
// failed on its own has Record.Err set.
func (s *Sawmill) ParseBatch(texts []string) ([]Record, error) {
	logs := make([]Log, len(texts))
	for i, t := range texts {
		logs[i] = Log{Text: t}
	}
	return s.ParseLogs(logs)
}

// ParseLog extracts fields from a structured log entry.
func (s *Sawmill) ParseLog(log Log) (Record, error) {
	rec, err := s.engine.Process(context.Background(), toRaw(log, time.Now()))
	if err != nil && rec.Err == nil {
		return Record{}, err
	}
	return recordFromModel(rec), err
}

// ParseLogs is ParseBatch for structured log entries.
func (s *Sawmill) ParseLogs(logs []Log) ([]Record, error) {
	return s.ParseLogsContext(context.Background(), logs)
}

// ParseLogsContext is ParseLogs with a caller-supplied context.
func (s *Sawmill) ParseLogsContext(ctx context.Context, logs []Log) ([]Record, error) {
	now := time.Now()
	raws := make([]model.RawLog, len(logs))
	for i, l := range logs {
		raws[i] = toRaw(l, now)
	}
	recs, err := s.engine.ProcessBatch(ctx, raws)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = recordFromModel(rec)
	}
	return out, nil
}

// Close releases the inference session. Must be called when the Sawmill is
// no longer needed.
func (s *Sawmill) Close() error {
	return s.engine.Close()
}

func toRaw(l Log, now time.Time) model.RawLog {
	ts := l.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return model.RawLog{Timestamp: ts, Source: l.Source, Raw: l.Text, Metadata: l.Metadata}
}

func recordFromModel(rec model.Record) Record {
	return Record{
		Doc:        rec.Doc,
		Timestamp:  rec.Timestamp,
		Source:     rec.Source,
		Raw:        rec.Raw,
		Fields:     rec.Fields,
		Confidence: rec.Confidence,
		Err:        rec.Err,
	}
}
