// Package config loads sawmill settings from defaults, an optional YAML file,
// SAWMILL_* environment variables, and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// EnvPrefix prefixes every environment variable, e.g. SAWMILL_ENGINE_STRIDE.
const EnvPrefix = "SAWMILL"

// Config holds all sawmill configuration.
type Config struct {
	Engine   EngineConfig `mapstructure:"engine"`
	Input    InputConfig  `mapstructure:"input"`
	Output   OutputConfig `mapstructure:"output"`
	LogLevel string       `mapstructure:"log_level"`
}

// EngineConfig holds model and reconstruction settings.
type EngineConfig struct {
	ModelDir        string        `mapstructure:"model_dir"`
	ModelPath       string        `mapstructure:"model_path"`
	VocabPath       string        `mapstructure:"vocab_path"`
	LabelsPath      string        `mapstructure:"labels_path"`
	MaxSeqLen       int           `mapstructure:"max_seq_len"`
	Stride          int           `mapstructure:"stride"`
	BatchSize       int           `mapstructure:"batch_size"`
	Workers         int           `mapstructure:"workers"` // 0 = runtime.NumCPU()
	LowerCase       bool          `mapstructure:"lower_case"`
	ConfidenceMerge string        `mapstructure:"confidence_merge"` // "begin", "begin_inside"
	InferTimeout    time.Duration `mapstructure:"infer_timeout"`
	RemoteURL       string        `mapstructure:"remote_url"`
	RemoteToken     string        `mapstructure:"remote_token"`
}

// InputConfig selects where raw log lines come from.
type InputConfig struct {
	Format        string        `mapstructure:"format"` // "lines", "csv", "jsonl"
	Path          string        `mapstructure:"path"`   // "-" = stdin
	Column        string        `mapstructure:"column"` // csv column / jsonl field
	Follow        bool          `mapstructure:"follow"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format     string `mapstructure:"format"` // comma-separated: "stdout", "file", "webhook"
	Path       string `mapstructure:"path"`
	MaxSize    int64  `mapstructure:"max_size"`
	Pretty     bool   `mapstructure:"pretty"`
	Verbosity  string `mapstructure:"verbosity"` // "minimal", "standard", "full"
	WebhookURL string `mapstructure:"webhook_url"`
}

// Formats splits Format into its destinations. An empty Format yields one
// empty entry so validation still reports it.
func (o OutputConfig) Formats() []string {
	parts := strings.Split(o.Format, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// SetDefaults registers every key's default on v. Keys need a default (or a
// bound flag) for AutomaticEnv to find them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.model_dir", "models")
	v.SetDefault("engine.model_path", "")
	v.SetDefault("engine.vocab_path", "")
	v.SetDefault("engine.labels_path", "")
	v.SetDefault("engine.max_seq_len", 256)
	v.SetDefault("engine.stride", 64)
	v.SetDefault("engine.batch_size", 64)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.lower_case", false)
	v.SetDefault("engine.confidence_merge", "begin")
	v.SetDefault("engine.infer_timeout", time.Duration(0))
	v.SetDefault("engine.remote_url", "")
	v.SetDefault("engine.remote_token", "")

	v.SetDefault("input.format", "lines")
	v.SetDefault("input.path", "-")
	v.SetDefault("input.column", "raw")
	v.SetDefault("input.follow", false)
	v.SetDefault("input.batch_size", 256)
	v.SetDefault("input.flush_interval", 2*time.Second)

	v.SetDefault("output.format", "stdout")
	v.SetDefault("output.path", "")
	v.SetDefault("output.max_size", int64(0))
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.verbosity", "standard")
	v.SetDefault("output.webhook_url", "")

	v.SetDefault("log_level", "info")
}

// New returns a viper instance with defaults and SAWMILL_ env binding.
// An empty cfgFile means no config file; a missing explicit file is an error
// at Load time.
func New(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	return v
}

// Load reads the config file (if one was set) and decodes v into a Config.
func Load(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for errors.
// Returns all problems found, joined into one error.
func (c Config) Validate() error {
	var errs []error

	e := c.Engine
	if e.MaxSeqLen <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_seq_len must be positive, got %d", e.MaxSeqLen))
	}
	if e.Stride <= 0 || e.Stride >= e.MaxSeqLen {
		errs = append(errs, fmt.Errorf("engine.stride must be in (0, max_seq_len), got %d", e.Stride))
	}
	if e.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.batch_size must be positive, got %d", e.BatchSize))
	}
	if e.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must not be negative, got %d", e.Workers))
	}
	if e.InferTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine.infer_timeout must not be negative, got %v", e.InferTimeout))
	}
	switch e.ConfidenceMerge {
	case "begin", "begin_inside":
	default:
		errs = append(errs, fmt.Errorf("engine.confidence_merge must be begin or begin_inside, got %q", e.ConfidenceMerge))
	}
	if e.RemoteURL == "" {
		if e.ModelPath != "" {
			if _, err := os.Stat(e.ModelPath); err != nil {
				errs = append(errs, fmt.Errorf("model file: %w", err))
			}
		} else if _, err := os.Stat(e.ModelDir); err != nil {
			errs = append(errs, fmt.Errorf("model directory: %w", err))
		}
	}

	switch c.Input.Format {
	case "lines", "csv", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("input.format must be lines, csv, or jsonl, got %q", c.Input.Format))
	}
	if c.Input.Follow && c.Input.Format == "csv" {
		errs = append(errs, errors.New("input.follow is not supported for csv input"))
	}
	if c.Input.Follow && (c.Input.Path == "" || c.Input.Path == "-") {
		errs = append(errs, errors.New("input.follow needs a file path"))
	}
	if c.Input.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("input.batch_size must be positive, got %d", c.Input.BatchSize))
	}
	if c.Input.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("input.flush_interval must be positive, got %v", c.Input.FlushInterval))
	}

	switch c.Output.Verbosity {
	case "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("output.verbosity must be minimal, standard, or full, got %q", c.Output.Verbosity))
	}
	for _, format := range c.Output.Formats() {
		switch format {
		case "stdout":
		case "file":
			if c.Output.Path == "" {
				errs = append(errs, errors.New("output.path is required for file output"))
			}
		case "webhook":
			if c.Output.WebhookURL == "" {
				errs = append(errs, errors.New("output.webhook_url is required for webhook output"))
			}
		default:
			errs = append(errs, fmt.Errorf("output.format must list stdout, file, or webhook, got %q", format))
		}
	}
	if c.Output.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("output.max_size must not be negative, got %d", c.Output.MaxSize))
	}

	return errors.Join(errs...)
}
