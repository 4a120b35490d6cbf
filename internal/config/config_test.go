package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.ModelDir != "models" {
		t.Errorf("ModelDir = %q, want models", cfg.Engine.ModelDir)
	}
	if cfg.Engine.MaxSeqLen != 256 || cfg.Engine.Stride != 64 {
		t.Errorf("window = %d/%d, want 256/64", cfg.Engine.MaxSeqLen, cfg.Engine.Stride)
	}
	if cfg.Engine.ConfidenceMerge != "begin" {
		t.Errorf("ConfidenceMerge = %q, want begin", cfg.Engine.ConfidenceMerge)
	}
	if cfg.Input.Format != "lines" || cfg.Input.Path != "-" || cfg.Input.Column != "raw" {
		t.Errorf("Input = %+v", cfg.Input)
	}
	if cfg.Input.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", cfg.Input.FlushInterval)
	}
	if cfg.Output.Format != "stdout" || cfg.Output.Verbosity != "standard" || cfg.Output.Pretty {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SAWMILL_ENGINE_STRIDE", "32")
	t.Setenv("SAWMILL_ENGINE_LOWER_CASE", "true")
	t.Setenv("SAWMILL_ENGINE_INFER_TIMEOUT", "1500ms")
	t.Setenv("SAWMILL_INPUT_FORMAT", "csv")
	t.Setenv("SAWMILL_OUTPUT_VERBOSITY", "full")
	t.Setenv("SAWMILL_LOG_LEVEL", "debug")

	cfg, err := Load(New(""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.Stride != 32 {
		t.Errorf("Stride = %d, want 32", cfg.Engine.Stride)
	}
	if !cfg.Engine.LowerCase {
		t.Error("LowerCase = false, want true")
	}
	if cfg.Engine.InferTimeout != 1500*time.Millisecond {
		t.Errorf("InferTimeout = %v, want 1.5s", cfg.Engine.InferTimeout)
	}
	if cfg.Input.Format != "csv" {
		t.Errorf("Input.Format = %q, want csv", cfg.Input.Format)
	}
	if cfg.Output.Verbosity != "full" {
		t.Errorf("Verbosity = %q, want full", cfg.Output.Verbosity)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sawmill.yaml")
	yaml := `
engine:
  max_seq_len: 128
  stride: 32
  confidence_merge: begin_inside
input:
  format: jsonl
  column: message
output:
  format: file
  path: /tmp/out.ndjson
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	// Env beats the file.
	t.Setenv("SAWMILL_ENGINE_STRIDE", "16")

	cfg, err := Load(New(path))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxSeqLen != 128 || cfg.Engine.Stride != 16 {
		t.Errorf("window = %d/%d, want 128/16", cfg.Engine.MaxSeqLen, cfg.Engine.Stride)
	}
	if cfg.Engine.ConfidenceMerge != "begin_inside" {
		t.Errorf("ConfidenceMerge = %q", cfg.Engine.ConfidenceMerge)
	}
	if cfg.Input.Format != "jsonl" || cfg.Input.Column != "message" {
		t.Errorf("Input = %+v", cfg.Input)
	}
	if cfg.Output.Format != "file" || cfg.Output.Path != "/tmp/out.ndjson" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	// Untouched keys keep their defaults.
	if cfg.Engine.BatchSize != 64 {
		t.Errorf("BatchSize = %d, want 64", cfg.Engine.BatchSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(New(filepath.Join(t.TempDir(), "nope.yaml"))); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// --- Validate tests ---

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load(New(""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg.Engine.ModelDir = t.TempDir()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nil error for valid config, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"stride equals max", func(c *Config) { c.Engine.Stride = c.Engine.MaxSeqLen }, "engine.stride"},
		{"zero stride", func(c *Config) { c.Engine.Stride = 0 }, "engine.stride"},
		{"zero max len", func(c *Config) { c.Engine.MaxSeqLen = 0 }, "engine.max_seq_len"},
		{"zero batch", func(c *Config) { c.Engine.BatchSize = 0 }, "engine.batch_size"},
		{"negative workers", func(c *Config) { c.Engine.Workers = -2 }, "engine.workers"},
		{"negative timeout", func(c *Config) { c.Engine.InferTimeout = -time.Second }, "engine.infer_timeout"},
		{"bad merge", func(c *Config) { c.Engine.ConfidenceMerge = "mean" }, "confidence_merge"},
		{"missing model dir", func(c *Config) { c.Engine.ModelDir = "/nonexistent/models" }, "model directory"},
		{"missing model file", func(c *Config) { c.Engine.ModelPath = "/nonexistent/model.onnx" }, "model file"},
		{"bad input format", func(c *Config) { c.Input.Format = "xml" }, "input.format"},
		{"follow csv", func(c *Config) { c.Input.Format = "csv"; c.Input.Path = "a.csv"; c.Input.Follow = true }, "csv"},
		{"follow stdin", func(c *Config) { c.Input.Follow = true }, "file path"},
		{"zero input batch", func(c *Config) { c.Input.BatchSize = 0 }, "input.batch_size"},
		{"zero flush", func(c *Config) { c.Input.FlushInterval = 0 }, "flush_interval"},
		{"bad verbosity", func(c *Config) { c.Output.Verbosity = "loud" }, "verbosity"},
		{"file without path", func(c *Config) { c.Output.Format = "file" }, "output.path"},
		{"webhook without url", func(c *Config) { c.Output.Format = "webhook" }, "webhook_url"},
		{"bad output", func(c *Config) { c.Output.Format = "kafka" }, "output.format"},
		{"bad output in list", func(c *Config) { c.Output.Format = "stdout,kafka" }, "kafka"},
		{"empty output", func(c *Config) { c.Output.Format = "" }, "output.format"},
		{"negative max size", func(c *Config) { c.Output.MaxSize = -1 }, "max_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_RemoteSkipsModelCheck(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine.ModelDir = "/nonexistent/models"
	cfg.Engine.RemoteURL = "http://model-server:8080"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nil error with remote predictor, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine.Stride = 0
	cfg.Input.Format = "xml"
	cfg.Output.Verbosity = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple bad fields")
	}
	msg := err.Error()
	for _, want := range []string{"engine.stride", "input.format", "verbosity"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got: %v", want, msg)
		}
	}
}

func TestVersion_IsSet(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should not be empty")
	}
}

func TestOutputFormats(t *testing.T) {
	got := OutputConfig{Format: "stdout, file"}.Formats()
	if len(got) != 2 || got[0] != "stdout" || got[1] != "file" {
		t.Errorf("Formats() = %q", got)
	}

	cfg := validConfig(t)
	cfg.Output.Format = "stdout,file"
	cfg.Output.Path = "out.ndjson"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid fan-out config, got: %v", err)
	}
}
