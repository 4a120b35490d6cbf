package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/crimson-sun/sawmill/internal/config"
	"github.com/crimson-sun/sawmill/internal/output"
	"github.com/crimson-sun/sawmill/internal/output/async"
	"github.com/crimson-sun/sawmill/internal/output/multi"
	"github.com/crimson-sun/sawmill/internal/output/stdout"
)

var testVocab = []string{"[PAD]", "[UNK]", "server", "##01", "ERROR"}

const testLabelConfig = `{"id2label": {"0": "O", "1": "B-host", "2": "B-level"}}`

// labelOf is the fake model server's prediction per vocabulary id.
var labelOf = map[int64]int{2: 1, 3: 1, 4: 2}

func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(strings.Join(testVocab, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(testLabelConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InputIDs [][]int64 `json:"input_ids"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var resp struct {
			Labels      [][]int     `json:"labels"`
			Confidences [][]float32 `json:"confidences"`
		}
		for _, row := range req.InputIDs {
			ls := make([]int, len(row))
			cs := make([]float32, len(row))
			for i, id := range row {
				ls[i], cs[i] = labelOf[id], 0.9
			}
			resp.Labels = append(resp.Labels, ls)
			resp.Confidences = append(resp.Confidences, cs)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addGlobalFlags(fs)
	addInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SAWMILL_ENGINE_STRIDE", "32")
	t.Setenv("SAWMILL_ENGINE_BATCH_SIZE", "8")

	fs := newTestFlags(t, "--model-dir", dir, "--stride", "16", "--format", "jsonl")
	cfg, err := loadConfig(fs, nil)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Engine.Stride != 16 {
		t.Errorf("stride = %d, want flag value 16", cfg.Engine.Stride)
	}
	if cfg.Engine.BatchSize != 8 {
		t.Errorf("batch size = %d, want env value 8", cfg.Engine.BatchSize)
	}
	if cfg.Input.Format != "jsonl" {
		t.Errorf("input format = %q", cfg.Input.Format)
	}
	if cfg.Engine.MaxSeqLen != 256 {
		t.Errorf("max seq len = %d, want default 256", cfg.Engine.MaxSeqLen)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	fs := newTestFlags(t, "--model-dir", t.TempDir())
	cfg, err := loadConfig(fs, map[string]any{"input.path": "app.log", "input.follow": true})
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Input.Path != "app.log" || !cfg.Input.Follow {
		t.Errorf("input = %+v", cfg.Input)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	fs := newTestFlags(t, "--model-dir", t.TempDir(), "--stride", "300")
	if _, err := loadConfig(fs, nil); err == nil || !strings.Contains(err.Error(), "engine.stride") {
		t.Fatalf("expected stride error, got %v", err)
	}
}

func TestBuildOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")

	tests := []struct {
		name  string
		cfg   config.OutputConfig
		check func(output.Output) bool
	}{
		{"stdout", config.OutputConfig{Format: "stdout"}, func(o output.Output) bool { _, ok := o.(*stdout.Output); return ok }},
		{"webhook", config.OutputConfig{Format: "webhook", WebhookURL: "http://127.0.0.1:1"}, func(o output.Output) bool { _, ok := o.(*async.Async); return ok }},
		{"fan-out", config.OutputConfig{Format: "stdout,file", Path: path}, func(o output.Output) bool { _, ok := o.(*multi.Multi); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := buildOutput(tt.cfg)
			if err != nil {
				t.Fatalf("buildOutput() error: %v", err)
			}
			defer out.Close()
			if !tt.check(out) {
				t.Errorf("unexpected output type %T", out)
			}
		})
	}
}

func TestBuildOutputErrors(t *testing.T) {
	if _, err := buildOutput(config.OutputConfig{Format: "stdout", Verbosity: "loud"}); err == nil {
		t.Error("expected verbosity error")
	}
	if _, err := buildOutput(config.OutputConfig{Format: "stdout,kafka"}); err == nil {
		t.Error("expected unknown output error")
	}
	if _, err := buildOutput(config.OutputConfig{Format: "file", Path: filepath.Join(t.TempDir(), "no", "such", "dir", "x")}); err == nil {
		t.Error("expected file open error")
	}
}

func TestEngineSettings(t *testing.T) {
	s := engineSettings(config.EngineConfig{ModelDir: "m", Stride: 32, MaxSeqLen: 128, ConfidenceMerge: "begin_inside"})
	if s.ModelDir != "m" || s.Stride != 32 || s.MaxSeqLen != 128 || s.ConfidenceMerge != "begin_inside" {
		t.Errorf("settings = %+v", s)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := out.String(); got != "sawmill "+config.Version+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestFieldsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"fields", "--model-dir", writeModelDir(t)})
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := out.String(); got != "host\nlevel\n" {
		t.Errorf("fields output = %q", got)
	}
}

func TestParseCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "app.log")
	if err := os.WriteFile(in, []byte("server01 ERROR\n\nERROR\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "fields.ndjson")

	rootCmd.SetArgs([]string{
		"parse",
		"--model-dir", writeModelDir(t),
		"--remote-url", newModelServer(t).URL,
		"--output", "file",
		"--output-path", outPath,
		"--verbosity", "minimal",
		"--log-level", "error",
		in,
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "{\"host\":\"server01\",\"level\":\"ERROR\"}\n{\"level\":\"ERROR\"}\n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}
