package infer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crimson-sun/sawmill/internal/httpclient"
)

func TestRemotePredictor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predict" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		var resp remoteResponse
		for _, row := range req.InputIDs {
			labels := make([]int, len(row))
			confs := make([]float32, len(row))
			for i, id := range row {
				labels[i] = int(id % 3)
				confs[i] = 0.8
			}
			resp.Labels = append(resp.Labels, labels)
			resp.Confidences = append(resp.Confidences, confs)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewRemotePredictor(httpclient.New(srv.URL, ""), "")
	defer p.Close()

	out, err := p.Predict(context.Background(), Batch{
		InputIDs:      []int64{3, 4, 5, 6, 7, 0},
		AttentionMask: []int64{1, 1, 1, 1, 1, 0},
		Size:          2,
		SeqLen:        3,
	})
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	want := []int{0, 1, 2, 0, 1, 0}
	for i := range want {
		if out.Labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", out.Labels, want)
		}
	}
}

func TestRemotePredictorRaggedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Right total (4), wrong row shape.
		w.Write([]byte(`{"labels":[[0,0,0],[0]],"confidences":[[1,1,1],[1]]}`))
	}))
	defer srv.Close()

	p := NewRemotePredictor(httpclient.New(srv.URL, ""), "/predict")
	_, err := p.Predict(context.Background(), Batch{
		InputIDs:      make([]int64, 4),
		AttentionMask: make([]int64, 4),
		Size:          2,
		SeqLen:        2,
	})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected ErrContractViolation, got %v", err)
	}
}

func TestRemotePredictorRowCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"labels":[[0,0]],"confidences":[[1,1]]}`))
	}))
	defer srv.Close()

	p := NewRemotePredictor(httpclient.New(srv.URL, ""), "")
	_, err := p.Predict(context.Background(), Batch{
		InputIDs:      make([]int64, 4),
		AttentionMask: make([]int64, 4),
		Size:          2,
		SeqLen:        2,
	})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected ErrContractViolation, got %v", err)
	}
}
