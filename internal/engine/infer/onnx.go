package infer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/sawmill/internal/engine/classifier"
)

// ortEnv manages process-wide ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXPredictor runs a BertForTokenClassification model exported to ONNX.
// The model must take input_ids and attention_mask (token_type_ids is fed
// zeros when declared) and emit logits shaped [batch, seq, numLabels].
type ONNXPredictor struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	numLabels  int64
}

// NewONNXPredictor loads the model at modelPath. numLabels is the size of the
// label map; it must match the model's logits dimension when that is fixed.
// libonnxruntime.so is expected next to the model file.
func NewONNXPredictor(modelPath string, numLabels int) (*ONNXPredictor, error) {
	libPath := filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	inputNames, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	out := outputs[0]
	if len(out.Dimensions) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D logits tensor, got %v", out.Dimensions)
	}
	dim := out.Dimensions[2]
	switch {
	case dim > 0 && numLabels > 0 && dim != int64(numLabels):
		return nil, fmt.Errorf("onnx: model emits %d labels, label map has %d", dim, numLabels)
	case dim <= 0 && numLabels <= 0:
		return nil, fmt.Errorf("onnx: label dimension is dynamic and no label count was given")
	case dim <= 0:
		dim = int64(numLabels)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNXPredictor{
		session:    session,
		inputNames: inputNames,
		outputName: out.Name,
		numLabels:  dim,
	}, nil
}

// validateInputs returns the input names to feed, in order.
func validateInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}
	names := []string{"input_ids", "attention_mask"}
	for _, name := range names {
		if !nameSet[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	if nameSet["token_type_ids"] {
		names = append(names, "token_type_ids")
	}
	return names, nil
}

// NumLabels returns the logits dimension.
func (p *ONNXPredictor) NumLabels() int {
	return int(p.numLabels)
}

// Predict runs one batch and reduces the logits to label + confidence per position.
func (p *ONNXPredictor) Predict(ctx context.Context, b Batch) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	shape := ort.NewShape(b.Size, b.SeqLen)

	values := make([]ort.Value, 0, len(p.inputNames))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	tIDs, err := ort.NewTensor(shape, b.InputIDs)
	if err != nil {
		return Output{}, fmt.Errorf("onnx: failed to create input_ids tensor: %w", err)
	}
	values = append(values, tIDs)

	tMask, err := ort.NewTensor(shape, b.AttentionMask)
	if err != nil {
		return Output{}, fmt.Errorf("onnx: failed to create attention_mask tensor: %w", err)
	}
	values = append(values, tMask)

	if len(p.inputNames) == 3 {
		tTypes, err := ort.NewTensor(shape, make([]int64, b.Size*b.SeqLen))
		if err != nil {
			return Output{}, fmt.Errorf("onnx: failed to create token_type_ids tensor: %w", err)
		}
		values = append(values, tTypes)
	}

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(b.Size, b.SeqLen, p.numLabels))
	if err != nil {
		return Output{}, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := p.session.Run(values, []ort.Value{tOut}); err != nil {
		return Output{}, fmt.Errorf("onnx: inference failed: %w", err)
	}

	positions := int(b.Size * b.SeqLen)
	out := Output{
		Labels:      make([]int, positions),
		Confidences: make([]float32, positions),
	}
	if err := classifier.Classify(tOut.GetData(), int(p.numLabels), out.Labels, out.Confidences); err != nil {
		return Output{}, fmt.Errorf("onnx: %w", err)
	}
	return out, nil
}

// Close releases the ONNX session.
func (p *ONNXPredictor) Close() error {
	return p.session.Destroy()
}
