package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crimson-sun/sawmill/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sawmill",
	Short: "Extract structured fields from raw log lines",
	Long: `Sawmill runs a BERT token-classification model over raw log lines and
emits one JSON record of named fields per line.

Long lines are split into overlapping windows so nothing is truncated.

Examples:
  sawmill parse /var/log/syslog
  cat app.log | sawmill parse --verbosity minimal
  sawmill parse --format csv --column message logs.csv
  sawmill follow --output stdout,file --output-path fields.ndjson /var/log/app.log`,
	SilenceUsage: true,
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"log_level":               "log-level",
	"engine.model_dir":        "model-dir",
	"engine.remote_url":       "remote-url",
	"engine.max_seq_len":      "max-seq-len",
	"engine.stride":           "stride",
	"engine.batch_size":       "batch-size",
	"engine.workers":          "workers",
	"engine.lower_case":       "lower-case",
	"engine.confidence_merge": "confidence-merge",
	"input.format":            "format",
	"input.column":            "column",
	"output.format":           "output",
	"output.path":             "output-path",
	"output.verbosity":        "verbosity",
	"output.pretty":           "pretty",
	"output.webhook_url":      "webhook-url",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML)")
	addGlobalFlags(pf)
}

// addGlobalFlags registers the engine, output, and logging flags every
// command accepts.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "log level (debug, info, warn, error)")

	fs.String("model-dir", "models", "directory holding model.onnx, vocab.txt, config.json")
	fs.String("remote-url", "", "model server URL; replaces the local ONNX session")
	fs.Int("max-seq-len", 256, "window length in tokens")
	fs.Int("stride", 64, "distance between window starts in tokens")
	fs.Int("batch-size", 64, "windows per inference call")
	fs.Int("workers", 0, "tokenize/decode workers (0 = number of CPUs)")
	fs.Bool("lower-case", false, "lowercase text before tokenizing (uncased models only)")
	fs.String("confidence-merge", "begin", "tokens averaged into field confidence (begin, begin_inside)")

	fs.String("output", "stdout", "comma-separated outputs (stdout, file, webhook)")
	fs.String("output-path", "", "file output path")
	fs.String("verbosity", "standard", "record detail (minimal, standard, full)")
	fs.Bool("pretty", false, "indent stdout JSON")
	fs.String("webhook-url", "", "webhook output URL")
}

// addInputFlags registers the flags shared by commands that read logs.
func addInputFlags(fs *pflag.FlagSet) {
	fs.String("format", "lines", "input format (lines, csv, jsonl)")
	fs.String("column", "raw", "csv column or jsonl field holding the log text")
}

// loadConfig layers flags over env over file over defaults, applies
// overrides, and validates the result.
func loadConfig(fs *pflag.FlagSet, overrides map[string]any) (config.Config, error) {
	v := config.New(cfgFile)
	if err := bindFlags(v, fs); err != nil {
		return config.Config{}, err
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
