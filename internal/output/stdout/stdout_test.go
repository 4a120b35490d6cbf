package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

func testRecord() model.Record {
	rec := model.NewRecord(0)
	rec.Raw = "server01 <init> started"
	rec.Fields["host"] = "server01"
	rec.Fields["process"] = "<init>"
	rec.Confidence["host"] = 0.91
	rec.Confidence["process"] = 0.7
	return rec
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, false)
		out.Write(context.Background(), testRecord())
		out.Write(context.Background(), testRecord())
	})

	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"doc", "fields", "confidence"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in output", key)
		}
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Standard, true)
	if err := out.Write(context.Background(), testRecord()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"fields\"") {
		t.Errorf("expected indented output, got: %s", buf.String())
	}
}

func TestOutputMinimalIsFieldsOnly(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Minimal, false)
	out.Write(context.Background(), testRecord())

	got := strings.TrimSpace(buf.String())
	// Keys are sorted and HTML characters are not escaped.
	want := `{"host":"server01","process":"<init>"}`
	if got != want {
		t.Errorf("minimal output = %s, want %s", got, want)
	}
}
