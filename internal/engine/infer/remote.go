package infer

import (
	"context"
	"fmt"

	"github.com/crimson-sun/sawmill/internal/httpclient"
)

// RemotePredictor calls a model server that accepts
//
//	{"input_ids": [[...]], "attention_mask": [[...]]}
//
// and answers with one row of labels and confidences per input row:
//
//	{"labels": [[...]], "confidences": [[...]]}
type RemotePredictor struct {
	client *httpclient.Client
	path   string
}

type remoteRequest struct {
	InputIDs      [][]int64 `json:"input_ids"`
	AttentionMask [][]int64 `json:"attention_mask"`
}

type remoteResponse struct {
	Labels      [][]int     `json:"labels"`
	Confidences [][]float32 `json:"confidences"`
}

// NewRemotePredictor posts batches to path on client.
func NewRemotePredictor(client *httpclient.Client, path string) *RemotePredictor {
	if path == "" {
		path = "/v1/predict"
	}
	return &RemotePredictor{client: client, path: path}
}

// Predict sends one batch to the model server.
func (p *RemotePredictor) Predict(ctx context.Context, b Batch) (Output, error) {
	req := remoteRequest{
		InputIDs:      rows(b.InputIDs, b.Size, b.SeqLen),
		AttentionMask: rows(b.AttentionMask, b.Size, b.SeqLen),
	}
	var resp remoteResponse
	if err := p.client.PostJSON(ctx, p.path, req, &resp); err != nil {
		return Output{}, fmt.Errorf("remote predictor: %w", err)
	}

	// Row lengths are checked here; a ragged response could otherwise
	// flatten to the right total and still be misaligned.
	if int64(len(resp.Labels)) != b.Size || int64(len(resp.Confidences)) != b.Size {
		return Output{}, fmt.Errorf("%w: %d rows in, %d label rows and %d confidence rows out",
			ErrContractViolation, b.Size, len(resp.Labels), len(resp.Confidences))
	}
	out := Output{
		Labels:      make([]int, 0, b.Size*b.SeqLen),
		Confidences: make([]float32, 0, b.Size*b.SeqLen),
	}
	for i := range resp.Labels {
		if int64(len(resp.Labels[i])) != b.SeqLen || int64(len(resp.Confidences[i])) != b.SeqLen {
			return Output{}, fmt.Errorf("%w: row %d has %d labels and %d confidences for %d positions",
				ErrContractViolation, i, len(resp.Labels[i]), len(resp.Confidences[i]), b.SeqLen)
		}
		out.Labels = append(out.Labels, resp.Labels[i]...)
		out.Confidences = append(out.Confidences, resp.Confidences[i]...)
	}
	return out, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (p *RemotePredictor) Close() error { return nil }

func rows(flat []int64, size, seqLen int64) [][]int64 {
	out := make([][]int64, size)
	for i := range out {
		out[i] = flat[int64(i)*seqLen : int64(i+1)*seqLen]
	}
	return out
}
