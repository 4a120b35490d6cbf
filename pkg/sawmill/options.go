package sawmill

import (
	"time"

	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/engine/infer"
)

// Batch is one padded inference batch: flat [Size*SeqLen] token ids and
// attention mask.
type Batch = infer.Batch

// Prediction holds a label id and confidence per batch position, in input
// order.
type Prediction = infer.Output

// Predictor runs the token classifier. Implement it to plug in a model
// runtime other than the built-in ONNX session or model server client.
type Predictor = infer.Predictor

type options struct {
	settings  engine.Settings
	predictor Predictor
}

// Option configures a Sawmill instance.
type Option func(*options)

// WithModelDir sets the directory containing model files.
// Expects: model.onnx, vocab.txt, config.json.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.settings.ModelDir = dir
	}
}

// WithModelPaths sets explicit paths for each model file.
func WithModelPaths(model, vocab, labels string) Option {
	return func(o *options) {
		o.settings.ModelPath = model
		o.settings.VocabPath = vocab
		o.settings.LabelsPath = labels
	}
}

// WithWindow sets the window length and stride used to split long lines.
// Default: 256 and 64.
func WithWindow(maxSeqLen, stride int) Option {
	return func(o *options) {
		o.settings.MaxSeqLen = maxSeqLen
		o.settings.Stride = stride
	}
}

// WithBatchSize sets how many windows go to the model per call. Default: 64.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.settings.BatchSize = n
	}
}

// WithWorkers bounds tokenization and decoding concurrency.
// Default: runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		o.settings.Workers = n
	}
}

// WithLowerCase lowercases text before tokenization. Only use with uncased
// models.
func WithLowerCase() Option {
	return func(o *options) {
		o.settings.LowerCase = true
	}
}

// WithMergeInsideConfidence averages the confidence of every token in a
// field instead of only its begin tokens.
func WithMergeInsideConfidence() Option {
	return func(o *options) {
		o.settings.ConfidenceMerge = "begin_inside"
	}
}

// WithInferTimeout bounds each model call.
func WithInferTimeout(d time.Duration) Option {
	return func(o *options) {
		o.settings.InferTimeout = d
	}
}

// WithRemote sends inference to a model server instead of a local ONNX
// session. The vocabulary and label map are still read from the model
// directory.
func WithRemote(url, token string) Option {
	return func(o *options) {
		o.settings.RemoteURL = url
		o.settings.RemoteToken = token
	}
}

// WithPredictor replaces the model runtime. The vocabulary and label map are
// still read from the model directory. Close on the Sawmill closes p.
func WithPredictor(p Predictor) Option {
	return func(o *options) {
		o.predictor = p
	}
}
