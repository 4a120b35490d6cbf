package engine

import (
	"path/filepath"
	"time"

	"github.com/crimson-sun/sawmill/internal/engine/decoder"
	"github.com/crimson-sun/sawmill/internal/engine/infer"
	"github.com/crimson-sun/sawmill/internal/engine/labels"
	"github.com/crimson-sun/sawmill/internal/engine/normalize"
	"github.com/crimson-sun/sawmill/internal/engine/tokenizer"
	"github.com/crimson-sun/sawmill/internal/httpclient"
)

// Default file names inside a model directory.
const (
	ModelFile  = "model.onnx"
	VocabFile  = "vocab.txt"
	LabelsFile = "config.json"
)

// Settings describes where the model artifacts live and how to run them.
type Settings struct {
	ModelDir   string // used for any path left empty below
	ModelPath  string
	VocabPath  string
	LabelsPath string

	// RemoteURL switches inference to a model server instead of a local
	// ONNX session.
	RemoteURL   string
	RemoteToken string

	MaxSeqLen       int
	Stride          int
	BatchSize       int
	Workers         int
	LowerCase       bool
	ConfidenceMerge string // "begin" or "begin_inside"
	InferTimeout    time.Duration
}

func (s Settings) paths() (modelPath, vocabPath, labelsPath string) {
	dir := s.ModelDir
	if dir == "" {
		dir = "models"
	}
	pick := func(explicit, name string) string {
		if explicit != "" {
			return explicit
		}
		return filepath.Join(dir, name)
	}
	return pick(s.ModelPath, ModelFile), pick(s.VocabPath, VocabFile), pick(s.LabelsPath, LabelsFile)
}

// Open loads the vocabulary and label map, starts the predictor, and wires
// an Engine. Loading is expensive: open once and reuse.
func Open(s Settings) (*Engine, error) {
	return OpenWithPredictor(s, nil)
}

// OpenWithPredictor is Open with a caller-supplied predictor. A nil pred
// falls back to the one Settings describes.
func OpenWithPredictor(s Settings, pred infer.Predictor) (*Engine, error) {
	modelPath, vocabPath, labelsPath := s.paths()

	merge, err := decoder.ParseMergePolicy(s.ConfidenceMerge)
	if err != nil {
		return nil, err
	}

	vocab, err := tokenizer.LoadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	lm, err := labels.LoadMap(labelsPath)
	if err != nil {
		return nil, err
	}

	if pred == nil {
		switch {
		case s.RemoteURL != "":
			pred = infer.NewRemotePredictor(httpclient.New(s.RemoteURL, s.RemoteToken), "")
		default:
			p, err := infer.NewONNXPredictor(modelPath, lm.NumLabels())
			if err != nil {
				return nil, err
			}
			pred = p
		}
	}

	var tokOpts []tokenizer.Option
	if s.LowerCase {
		tokOpts = append(tokOpts, tokenizer.WithLowerCase())
	}

	win := DefaultWindow
	if s.MaxSeqLen > 0 {
		win.MaxLen = s.MaxSeqLen
	}
	if s.Stride > 0 {
		win.Stride = s.Stride
	}

	opts := []Option{WithWindow(win), WithWorkers(s.Workers)}
	if s.BatchSize > 0 {
		opts = append(opts, WithBatchSize(s.BatchSize))
	}
	if s.InferTimeout > 0 {
		opts = append(opts, WithInferTimeout(s.InferTimeout))
	}

	eng, err := New(
		tokenizer.New(vocab, tokOpts...),
		pred,
		decoder.New(vocab, lm, decoder.WithMergePolicy(merge)),
		normalize.New(),
		opts...,
	)
	if err != nil {
		pred.Close()
		return nil, err
	}
	return eng, nil
}
